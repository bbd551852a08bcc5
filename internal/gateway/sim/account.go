package sim

import (
	"strings"

	"github.com/zappabad/optionboard/internal/gateway"
)

var accountValues = map[string]string{
	"NetLiquidation":     "125340.18",
	"TotalCashValue":     "48211.02",
	"BuyingPower":        "192844.08",
	"AvailableFunds":     "48211.02",
	"ExcessLiquidity":    "51007.66",
	"MaintMarginReq":     "12430.00",
	"GrossPositionValue": "77129.16",
}

func (s *Sim) accountSummary(id gateway.RequestID, c gateway.AccountSummary) {
	if c.Group != "All" && c.Group != s.cfg.Account {
		s.fail(id, CodeInvalidAccount, "Error validating request.-'bW' : cause - Invalid account code %s", c.Group)
		return
	}
	s.summaries[id] = c
	s.sendSummary(id, c)
}

func (s *Sim) sendSummary(id gateway.RequestID, c gateway.AccountSummary) {
	for _, tag := range strings.Split(c.Tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		v, ok := accountValues[tag]
		if !ok {
			v = "0"
		}
		s.emit(gateway.AccountValue{
			Header:   gateway.Header{ReqID: id},
			Account:  s.cfg.Account,
			Tag:      tag,
			Value:    v,
			Currency: "USD",
		})
	}
	s.emit(gateway.AccountSummaryEnd{Header: gateway.Header{ReqID: id}})
}

func (s *Sim) positions(id gateway.RequestID) {
	st, _ := s.lookupStock("SPY")
	exp := gateway.FormatExpiration(s.expirations()[0])
	strike := roundTo(st.price*0.95, s.cfg.StrikeStep)

	s.emit(gateway.Position{
		Header:     gateway.Header{ReqID: id},
		Account:    s.cfg.Account,
		ContractID: st.conID,
		Symbol:     st.symbol,
		SecType:    gateway.SecTypeStock,
		Quantity:   100,
		AvgCost:    cents(st.prevClose * 0.97),
	})
	s.emit(gateway.Position{
		Header:     gateway.Header{ReqID: id},
		Account:    s.cfg.Account,
		ContractID: hashConID("OPT|SPY|" + exp),
		Symbol:     st.symbol,
		SecType:    gateway.SecTypeOption,
		Expiration: exp,
		Strike:     strike,
		Right:      gateway.RightPut,
		Quantity:   -2,
		AvgCost:    142.5,
	})
	s.emit(gateway.PositionEnd{Header: gateway.Header{ReqID: id}})
}

func (s *Sim) openOrders(id gateway.RequestID) {
	st, _ := s.lookupStock("SPY")
	s.emit(gateway.OpenOrder{
		Header:     gateway.Header{ReqID: id},
		OrderID:    1001,
		Account:    s.cfg.Account,
		Symbol:     st.symbol,
		SecType:    gateway.SecTypeOption,
		Action:     "SELL",
		Quantity:   1,
		OrderType:  "LMT",
		LimitPrice: 1.35,
		Status:     "Submitted",
	})
	s.emit(gateway.OpenOrderEnd{Header: gateway.Header{ReqID: id}})
}
