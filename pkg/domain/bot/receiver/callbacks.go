package receiver

import (
	"strings"
	"time"
)

// ---------- Callback keys ----------

const (
	CbStart     = "start"
	CbMain      = "main"
	CbBook      = "book"
	CbMy        = "my"
	CbHelp      = "help"
	CbBack      = "back"
	CbPayOnline = "pay:online"
	CbPayOther  = "pay:other"
	// CbClearSearch drops the doctor search typed at step 2.
	CbClearSearch = "search:clear"

	PDep    = "dep:"    // dep:dept-cardio
	PDoc    = "doc:"    // doc:doc-1
	PD      = "d:"      // d:2026-10-19
	PT      = "t:"      // t:10:30
	PCancel = "cancel:" // cancel:<appointment id>
)

func Is(k, prefix string) (string, bool) {
	if strings.HasPrefix(k, prefix) {
		return strings.TrimPrefix(k, prefix), true
	}
	return "", false
}

func HumanDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02.01 (Mon)")
}
