package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"position-bridge/internal/types"
	"position-bridge/internal/wire"

	"github.com/shopspring/decimal"
)

func TestSummary(t *testing.T) {
	m := &wire.Message{
		Type:      wire.MessageType,
		Timestamp: 1700000000,
		AccountInfo: wire.AccountInfo{
			Login:   12345,
			Balance: wire.Amount{Decimal: decimal.RequireFromString("1000")},
			Equity:  wire.Amount{Decimal: decimal.RequireFromString("1012.345")},
		},
		Positions: []wire.Position{{Ticket: 1}, {Ticket: 2}},
	}

	got := summary(m, 321)
	want := "2023-11-14T22:13:20Z login=12345 balance=1000.00 equity=1012.35 positions=2 orders=0 bytes=321"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestConsumePrintsFrames(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Expected listener, got %v", err)
	}
	defer ln.Close()

	payload, err := wire.Serialize(&types.StateSnapshot{
		TakenAt: time.Unix(1700000000, 0),
		Account: types.AccountSummary{Login: 7, Balance: decimal.NewFromInt(5), Equity: decimal.NewFromInt(5)},
	})
	if err != nil {
		t.Fatalf("Expected serialize to succeed, got %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = wire.WriteFrame(conn, payload)
		_ = conn.Close()
	}()

	var out bytes.Buffer
	err = consume(context.Background(), ln.Addr().String(), &out)
	if err == nil || !strings.Contains(err.Error(), "closed by bridge") {
		t.Errorf("Expected closed by bridge, got %v", err)
	}
	if !strings.Contains(out.String(), "login=7 balance=5.00") {
		t.Errorf("Expected frame summary, got %q", out.String())
	}
}
