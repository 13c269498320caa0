package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tileshow/lib/frame"
)

type Wled struct {
	url    string
	client *http.Client
}

func NewWled(addr string) *Wled {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Wled{
		url:    strings.TrimRight(base, "/") + "/json/state",
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

type wledSegment struct {
	ID  int        `json:"id"`
	Fx  int        `json:"fx"`
	Pal int        `json:"pal"`
	Col [][3]uint8 `json:"col"`
	Sx  uint8      `json:"sx"`
	Bri uint8      `json:"bri"`
}

type wledState struct {
	Seg []wledSegment `json:"seg"`
}

func EncodeWledState(w *frame.Wled) ([]byte, error) {
	st := wledState{Seg: make([]wledSegment, len(w.Segments))}
	for i, s := range w.Segments {
		st.Seg[i] = wledSegment{
			ID:  i,
			Fx:  s.Effect,
			Pal: s.Palette,
			Col: [][3]uint8{{s.Color.R, s.Color.G, s.Color.B}},
			Sx:  s.Speed,
			Bri: s.Brightness,
		}
	}
	return json.Marshal(st)
}

func (w *Wled) Send(ctx context.Context, out frame.Output) error {
	wf, ok := out.(*frame.Wled)
	if !ok {
		return fmt.Errorf("transport: wled got %T: %w", out, ErrWrongFrame)
	}
	body, err := EncodeWledState(wf)
	if err != nil {
		return fmt.Errorf("transport: wled encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: wled request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: wled post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("transport: wled post: %s", resp.Status)
	}
	return nil
}

func (w *Wled) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
