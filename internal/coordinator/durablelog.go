package coordinator

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/interbank-gateway/atomicpay/internal/ledger"
)

// logRecord is one line of the durable log: spec.md §6's
// "{txid, state, src, dst, amount, ts}", extended to also record the
// in-flight insert — without it, a crash mid-2PC leaves no trace for
// the restart sweep in spec.md §4.1 to act on.
type logRecord struct {
	TxID      string `json:"txid"`
	State     State  `json:"state"`
	SrcBank   string `json:"src_bank"`
	SrcUser   string `json:"src_user"`
	DstBank   string `json:"dst_bank"`
	DstUser   string `json:"dst_user"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason,omitempty"`
	TsUnixNano int64 `json:"ts"`
}

// durableLog is the CO's single-writer append-only idempotency log.
type durableLog struct {
	mu   sync.Mutex
	path string
}

func newDurableLog(path string) *durableLog {
	return &durableLog{path: path}
}

// append writes one record and fsyncs before returning, matching the
// teacher's LogToFile (open-append-write-sync) discipline.
func (d *durableLog) append(e *Entry) error {
	rec := logRecord{
		TxID:       e.TxID.String(),
		State:      e.State,
		SrcBank:    e.SrcBank,
		SrcUser:    e.SrcUser,
		DstBank:    e.DstBank,
		DstUser:    e.DstUser,
		Amount:     int64(e.Amount),
		Reason:     e.Reason,
		TsUnixNano: e.StartedAt.UnixNano(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("coordinator: marshal log record: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("coordinator: open durable log %s: %w", d.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("coordinator: write durable log: %w", err)
	}
	return f.Sync()
}

// replay rebuilds the registry from the durable log: later records for
// the same txid overwrite earlier ones, so the final state per txid
// wins, exactly as a single mutable row would.
func (d *durableLog) replay() (map[ledger.TxID]*Entry, error) {
	file, err := os.Open(d.path)
	if os.IsNotExist(err) {
		return map[ledger.TxID]*Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("coordinator: open durable log %s: %w", d.path, err)
	}
	defer file.Close()

	entries := make(map[ledger.TxID]*Entry)
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		var rec logRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			log.Printf("coordinator: durable log line %d unreadable, skipping: %v", lineNo, err)
			continue
		}
		txid, err := ledger.ParseTxID(rec.TxID)
		if err != nil {
			log.Printf("coordinator: durable log line %d has malformed txid, skipping: %v", lineNo, err)
			continue
		}
		entries[txid] = &Entry{
			TxID:    txid,
			State:   rec.State,
			SrcBank: rec.SrcBank,
			SrcUser: rec.SrcUser,
			DstBank: rec.DstBank,
			DstUser: rec.DstUser,
			Amount:  ledger.Money(rec.Amount),
			Reason:  rec.Reason,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("coordinator: read durable log: %w", err)
	}

	log.Printf("coordinator: replayed %d log lines into %d entries", lineNo, len(entries))
	return entries, nil
}
