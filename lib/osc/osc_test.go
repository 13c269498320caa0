package osc

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestEncodeParse(t *testing.T) {
	in := Message{
		Address: "/tile/wash/strength",
		Args:    []any{float32(0.5), int32(-3), "hi", []byte{1, 2, 3}, int64(1) << 40, 2.25, true, nil},
	}
	data, err := in.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if len(data)%4 != 0 {
		t.Errorf("got length %d, want multiple of 4", len(data))
	}
	out, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if out.Address != in.Address {
		t.Errorf("got %q, want %q", out.Address, in.Address)
	}
	if len(out.Args) != len(in.Args) {
		t.Fatalf("got %d args, want %d", len(out.Args), len(in.Args))
	}
	if out.Args[0] != float32(0.5) || out.Args[1] != int32(-3) || out.Args[2] != "hi" {
		t.Errorf("got %v", out.Args[:3])
	}
	if !bytes.Equal(out.Args[3].([]byte), []byte{1, 2, 3}) {
		t.Errorf("got blob %v", out.Args[3])
	}
	if out.Args[4] != int64(1)<<40 || out.Args[5] != 2.25 || out.Args[6] != true || out.Args[7] != nil {
		t.Errorf("got %v", out.Args[4:])
	}
}

func TestParseNoTypeTag(t *testing.T) {
	m, err := Parse([]byte("/beat/tap\x00\x00\x00"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Address != "/beat/tap" || len(m.Args) != 0 {
		t.Errorf("got %+v", m)
	}
}

func TestParseTruncated(t *testing.T) {
	data, _ := Message{Address: "/x", Args: []any{int32(1)}}.Encode()
	if _, err := Parse(data[:len(data)-2]); !errors.Is(err, ErrTruncated) {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestEncodeUnsupported(t *testing.T) {
	if _, err := (Message{Address: "/x", Args: []any{struct{}{}}}).Encode(); err == nil {
		t.Error("expected error")
	}
}

func TestServerDispatches(t *testing.T) {
	got := make(chan Message, 1)
	s, err := Listen("127.0.0.1:0", func(m Message) { got <- m })
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Serve(ctx)

	if err := Send(s.Addr().String(), Message{Address: "/beat/bpm", Args: []any{float32(128)}}); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-got:
		if v, ok := Float(m.Args[0]); m.Address != "/beat/bpm" || !ok || v != 128 {
			t.Errorf("got %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message dispatched")
	}
}
