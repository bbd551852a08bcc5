package core

import (
	"fmt"
	"strings"

	"github.com/zappabad/optionboard/internal/diag"
	"github.com/zappabad/optionboard/internal/gateway"
	"github.com/zappabad/optionboard/internal/ledger"
)

// codeAccountValidation is raised when an account summary names an
// account the session cannot see.
const codeAccountValidation = 321

func (e *Engine) onError(entry ledger.Entry, ev gateway.Event) {
	notice := ev.(gateway.ErrorNotice)
	if _, benign := e.cfg.BenignCodes[notice.Code]; benign {
		e.stats.Benign++
		e.log.Debug().Int("code", notice.Code).Str("message", notice.Message).Msg("benign gateway notice")
		return
	}
	e.stats.Errors++

	d := diag.Diagnostic{
		Source:    diag.SourceGateway,
		Severity:  diag.SeverityError,
		RequestID: notice.RequestID(),
		Code:      notice.Code,
		Message:   notice.Message,
	}
	switch notice.Code {
	case gateway.CodeConnectivityLost:
		d.Source, d.Severity = diag.SourceTransport, diag.SeverityWarning
	case gateway.CodeConnectivityRestored:
		d.Source, d.Severity = diag.SourceTransport, diag.SeverityInfo
	}

	if entry.Command != nil {
		kind := entry.Kind()
		d.Command = kind.String()
		if !kind.Streaming() {
			e.ledger.Complete(entry.ID)
			delete(e.cs.resolving, entry.ID)
		}
		if notice.Code == codeAccountValidation && kind == gateway.CmdAccountSummary {
			d.Message = fmt.Sprintf("%s (available accounts: %s)", notice.Message, strings.Join(e.account.Accounts(), ", "))
		}
		if entry.ID == e.cs.stockReq && e.cs.stockConID == 0 {
			d.Message = fmt.Sprintf("%s: %s", e.symbol, d.Message)
		}
	}

	e.report(d)
}
