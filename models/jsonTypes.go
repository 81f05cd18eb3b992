package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Disposition is one nullable axis of a stock item's state (reserved, sold,
// transfer, exported, decal, decalTaken). A nil *Disposition means the axis is
// unset. Stored as a JSON column so the document shape survives round trips
// with the legacy data.
type Disposition struct {
	By         string    `json:"by"`
	At         time.Time `json:"at"`
	DocId      string    `json:"doc_id"`
	DocNo      string    `json:"doc_no"`
	BranchCode string    `json:"branch_code,omitempty"`
	Customer   string    `json:"customer,omitempty"`
	Remark     string    `json:"remark,omitempty"`
}

func (d Disposition) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *Disposition) Scan(value interface{}) error {
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	return json.Unmarshal(b, d)
}

// TransactionLog is one immutable entry of a stock item's history. Entries
// are only ever appended.
type TransactionLog struct {
	Ts         time.Time            `json:"ts"`
	By         string               `json:"by"`
	Type       StockTransactionType `json:"type"`
	DocId      string               `json:"doc_id"`
	DocNo      string               `json:"doc_no"`
	BranchCode string               `json:"branch_code,omitempty"`
	FromBranch string               `json:"from_branch,omitempty"`
	ToBranch   string               `json:"to_branch,omitempty"`
	Customer   string               `json:"customer,omitempty"`
	Remark     string               `json:"remark,omitempty"`
}

// TransactionLogList maps to a JSON array column.
type TransactionLogList []TransactionLog

func (l TransactionLogList) Value() (driver.Value, error) {
	if l == nil {
		l = TransactionLogList{}
	}
	return json.Marshal(l)
}

func (l *TransactionLogList) Scan(value interface{}) error {
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if b == nil {
		*l = TransactionLogList{}
		return nil
	}
	return json.Unmarshal(b, l)
}

// StringList maps a []string to a JSON column. Used for the precomputed
// search keyword arrays.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	b, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if b == nil {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(b, l)
}

func jsonBytes(value interface{}) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []byte(v), nil
	default:
		return nil, errors.New(fmt.Sprint("unsupported json column type ", value))
	}
}
