// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package logdb persists engine events into sqlite for later filtering.
package logdb

import (
	"context"
	"database/sql"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
	"github.com/cstake/cstake/metrics"
)

const eventTableSchema = `CREATE TABLE IF NOT EXISTS event (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	eventTime INTEGER NOT NULL,
	name TEXT NOT NULL,
	account BLOB(20) NOT NULL,
	amount BLOB(32),
	requested BLOB(32)
);

CREATE INDEX IF NOT EXISTS eventAccountIndex ON event(account);
CREATE INDEX IF NOT EXISTS eventTimeIndex ON event(eventTime);`

var metricEventsInserted = metrics.LazyLoadCounter("logdb_events_inserted_count")

type LogDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New create or open log db at given path.
func New(path string) (logDB *LogDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if logDB == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(eventTableSchema); err != nil {
		return nil, err
	}

	driverVer, _, _ := sqlite3.Version()
	return &LogDB{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem create a log db in ram.
func NewMem() (*LogDB, error) {
	return New(":memory:")
}

// Close close the log db.
func (db *LogDB) Close() {
	db.db.Close()
}

func (db *LogDB) Path() string {
	return db.path
}

// Insert appends an event and returns its assigned sequence number.
func (db *LogDB) Insert(ev *Event) (uint64, error) {
	res, err := db.db.Exec(
		"INSERT INTO event(eventTime, name, account, amount, requested) VALUES(?,?,?,?,?)",
		ev.Time,
		ev.Name,
		ev.Account.Bytes(),
		handleBlob(ev.Amount),
		handleBlob(ev.Requested),
	)
	if err != nil {
		return 0, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	ev.Seq = uint64(seq)
	metricEventsInserted().Add(1)
	return ev.Seq, nil
}

// Filter queries events matching the filter. A nil filter returns everything
// in insertion order.
func (db *LogDB) Filter(ctx context.Context, filter *Filter) ([]*Event, error) {
	if filter == nil {
		return db.queryEvents(ctx, "SELECT * FROM event")
	}
	var args []interface{}
	stmt := "SELECT * FROM event WHERE 1"
	if filter.Range != nil {
		args = append(args, filter.Range.From)
		stmt += " AND eventTime >= ? "
		if filter.Range.To >= filter.Range.From {
			args = append(args, filter.Range.To)
			stmt += " AND eventTime <= ? "
		}
	}
	length := len(filter.CriteriaSet)
	for i, criteria := range filter.CriteriaSet {
		if i == 0 {
			stmt += " AND (( 1 "
		} else {
			stmt += " OR ( 1 "
		}
		if criteria.Account != nil {
			args = append(args, criteria.Account.Bytes())
			stmt += " AND account = ? "
		}
		if criteria.Name != nil {
			args = append(args, *criteria.Name)
			stmt += " AND name = ? "
		}
		if i == length-1 {
			stmt += " )) "
		} else {
			stmt += " ) "
		}
	}

	if filter.Order == DESC {
		stmt += " ORDER BY seq DESC "
	} else {
		stmt += " ORDER BY seq ASC "
	}

	if filter.Options != nil {
		stmt += " limit ?, ? "
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.queryEvents(ctx, stmt, args...)
}

func (db *LogDB) queryEvents(ctx context.Context, stmt string, args ...interface{}) ([]*Event, error) {
	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			seq       uint64
			eventTime uint64
			name      string
			account   []byte
			amount    []byte
			requested []byte
		)
		if err := rows.Scan(
			&seq,
			&eventTime,
			&name,
			&account,
			&amount,
			&requested,
		); err != nil {
			return nil, err
		}
		events = append(events, &Event{
			Seq:       seq,
			Time:      eventTime,
			Name:      name,
			Account:   cstake.BytesToAddress(account),
			Amount:    blobHandle(amount),
			Requested: blobHandle(requested),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// handleBlob maps an uninitialized handle to NULL.
func handleBlob(h fhe.Handle) []byte {
	if !h.Initialized() {
		return nil
	}
	return h.Bytes()
}

func blobHandle(b []byte) fhe.Handle {
	if len(b) == 0 {
		return fhe.Handle{}
	}
	return fhe.Handle(cstake.BytesToBytes32(b))
}
