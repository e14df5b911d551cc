// Package export writes pipeline board snapshots as JSONL.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"coachcrm/internal/domain/lead"
	"coachcrm/internal/domain/pipeline"
)

// Version of the snapshot format written in the header line.
const Version = "1"

// Header is the first JSONL record of a snapshot.
type Header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	OwnerID   string    `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`
	LeadCount int       `json:"lead_count"`
}

// Entry is one lead line: the lead plus where it sits on the board.
type Entry struct {
	Type     string    `json:"type"`
	ColumnID string    `json:"column_id"`
	Position int       `json:"position"`
	Status   string    `json:"status"`
	Lead     lead.Lead `json:"lead"`
}

// Destination receives a finished snapshot payload.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// WriteJSONL writes board as a header line followed by one line per lead,
// walking columns in display order and leads in column order.
func WriteJSONL(w io.Writer, ownerID string, board *pipeline.Board, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(Header{
		Version:   Version,
		Type:      "header",
		OwnerID:   ownerID,
		Timestamp: now.UTC(),
		LeadCount: countPlaced(board),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, colID := range board.ColumnOrder {
		col := board.Columns[colID]
		for pos, l := range board.ColumnLeads(colID) {
			entry := Entry{
				Type:     "lead",
				ColumnID: colID,
				Position: pos,
				Status:   string(pipeline.StatusOf(col.Title)),
				Lead:     l,
			}
			if err := enc.Encode(entry); err != nil {
				return fmt.Errorf("encode lead %s: %w", l.ID, err)
			}
		}
	}
	return nil
}

// Export renders board and hands the payload to every destination.
// PRE: board is non-nil
// POST: Returns the payload size; the first destination error aborts
func Export(ctx context.Context, ownerID string, board *pipeline.Board, now time.Time, dests ...Destination) (int, error) {
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, ownerID, board, now); err != nil {
		return 0, err
	}
	for _, d := range dests {
		if err := d.Write(ctx, buf.Bytes()); err != nil {
			return 0, err
		}
	}
	return buf.Len(), nil
}

// ReadJSONL parses a snapshot written by WriteJSONL.
func ReadJSONL(r io.Reader) (Header, []Entry, error) {
	dec := json.NewDecoder(r)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return Header{}, nil, fmt.Errorf("decode header: %w", err)
	}
	if h.Type != "header" {
		return Header{}, nil, fmt.Errorf("first record has type %q, want header", h.Type)
	}
	var entries []Entry
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return h, entries, fmt.Errorf("decode lead %d: %w", len(entries), err)
		}
		entries = append(entries, e)
	}
	return h, entries, nil
}

func countPlaced(b *pipeline.Board) int {
	n := 0
	for _, colID := range b.ColumnOrder {
		n += len(b.ColumnLeads(colID))
	}
	return n
}
