package tui

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zappabad/optionboard/internal/account"
	"github.com/zappabad/optionboard/internal/diag"
	diagview "github.com/zappabad/optionboard/internal/diag/view"
	"github.com/zappabad/optionboard/internal/options"
	"github.com/zappabad/optionboard/internal/options/service"
	"github.com/zappabad/optionboard/tui/panels"
)

type fakeBoard struct {
	mu       sync.Mutex
	loaded   []string
	horizons []int
	reloads  int
	refresh  int
	status   service.Status
	rows     []service.Row
	err      error
}

func (b *fakeBoard) LoadSymbol(_ context.Context, s string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = append(b.loaded, s)
	b.status.Symbol = s
	return b.err
}

func (b *fakeBoard) SetHorizonWeeks(_ context.Context, w int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.horizons = append(b.horizons, w)
	b.status.HorizonWeeks = w
	return b.err
}

func (b *fakeBoard) Reload(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reloads++
	return b.err
}

func (b *fakeBoard) RefreshAccount(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh++
	return b.err
}

func (b *fakeBoard) Snapshot() []service.Row { return b.rows }

func (b *fakeBoard) Underlying() options.Underlying {
	return options.Underlying{Symbol: b.status.Symbol, LastPrice: options.Float(101.5)}
}

func (b *fakeBoard) Account() account.Snapshot { return account.Snapshot{Accounts: []string{"DU1"}} }

func (b *fakeBoard) Status() service.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *fakeBoard) MarketOpen() bool { return true }

type fakeFeed struct {
	ch chan diagview.DiagEvent
}

func (f *fakeFeed) Latest(int) []diag.Diagnostic { return nil }
func (f *fakeFeed) Events() <-chan diagview.DiagEvent { return f.ch }

// run executes cmd and any batched commands, returning the messages.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func newTestModel(b *fakeBoard) *Model {
	m := NewModel(b, &fakeFeed{ch: make(chan diagview.DiagEvent, 1)}, Options{RefreshInterval: time.Hour})
	m.Update(tea.WindowSizeMsg{Width: 160, Height: 50})
	return m
}

func TestModelFocusCycles(t *testing.T) {
	m := newTestModel(&fakeBoard{})
	assert.Equal(t, FocusHeader, m.Focus())

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, FocusChain, m.Focus())

	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, FocusDiagnostics, m.Focus())
}

func TestModelCommandsIgnoredWhileTyping(t *testing.T) {
	b := &fakeBoard{}
	m := newTestModel(b)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	for _, msg := range run(cmd) {
		_, isQuit := msg.(tea.QuitMsg)
		assert.False(t, isQuit)
	}
}

func TestModelReloadAndHorizon(t *testing.T) {
	b := &fakeBoard{status: service.Status{HorizonWeeks: 10}}
	m := newTestModel(b)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	msgs := run(cmd)
	require.Len(t, msgs, 1)
	m.Update(msgs[0])
	assert.Equal(t, 1, b.reloads)
	assert.Equal(t, "✓ reload", m.StatusMessage())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("+")})
	assert.Nil(t, cmd)
	assert.Contains(t, m.StatusMessage(), "horizon")
	assert.Empty(t, b.horizons)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	run(cmd)
	assert.Equal(t, []int{9}, b.horizons)
}

func TestModelSymbolSubmit(t *testing.T) {
	b := &fakeBoard{}
	m := newTestModel(b)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})

	_, cmd := m.Update(panels.SymbolSubmitMsg{Symbol: "SPY"})
	msgs := run(cmd)
	require.Len(t, msgs, 1)
	m.Update(msgs[0])

	assert.Equal(t, []string{"SPY"}, b.loaded)
	assert.Equal(t, "✓ load SPY", m.StatusMessage())
	assert.Contains(t, m.View(), "SPY")
}

func TestModelCommandFailure(t *testing.T) {
	b := &fakeBoard{err: options.ErrEmptySymbol}
	m := newTestModel(b)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	msgs := run(cmd)
	require.Len(t, msgs, 1)
	m.Update(msgs[0])

	assert.Equal(t, 1, b.refresh)
	assert.Contains(t, m.StatusMessage(), "account refresh failed")
}

func TestModelDiagnosticEvents(t *testing.T) {
	feed := &fakeFeed{ch: make(chan diagview.DiagEvent, 1)}
	m := NewModel(&fakeBoard{}, feed, Options{})

	feed.ch <- diagview.DiagEvent{Item: diag.Diagnostic{ID: 1, Message: "no security definition"}}
	msg := m.listenDiagEvents()()
	dm, ok := msg.(panels.DiagnosticMsg)
	require.True(t, ok)
	assert.Equal(t, "no security definition", dm.Item.Message)

	close(feed.ch)
	assert.Nil(t, m.listenDiagEvents()())
}
