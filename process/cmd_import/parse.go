package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var centsRE = regexp.MustCompile(`[.,]\d{2}$`)

// statementEntry is one parsed line of a CSV bank statement:
// date,payee,amount[,location[,category[,reference]]]. When the
// statement carries no reference column the 1-based line number is used
// so re-imports stay idempotent.
type statementEntry struct {
	Date      time.Time
	Payee     string
	Amount    int64
	Location  *string
	Category  string
	Reference string
}

func parseStatementFile(path string) ([]statementEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseStatement(f)
}

func parseStatement(r io.Reader) ([]statementEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // trailing columns are optional
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []statementEntry
	for i, rec := range records {
		if i == 0 && isHeaderRow(rec) {
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: want at least date,payee,amount", i+1)
		}
		date, err := time.Parse(dateLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad date %q", i+1, rec[0])
		}
		payee := strings.TrimSpace(rec[1])
		if payee == "" {
			return nil, fmt.Errorf("line %d: empty payee", i+1)
		}
		amount, err := parseAmount(rec[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad amount %q", i+1, rec[2])
		}
		e := statementEntry{
			Date:      date,
			Payee:     payee,
			Amount:    amount,
			Reference: strconv.Itoa(i + 1),
		}
		if len(rec) > 3 {
			if loc := strings.TrimSpace(rec[3]); loc != "" {
				e.Location = &loc
			}
		}
		if len(rec) > 4 {
			e.Category = strings.TrimSpace(rec[4])
		}
		if len(rec) > 5 {
			if ref := strings.TrimSpace(rec[5]); ref != "" {
				e.Reference = ref
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func isHeaderRow(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "date")
}

// parseAmount accepts minor units ("-1560") or a decimal with two
// fraction digits ("-15.60", "1.234,56") and returns minor units.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if !centsRE.MatchString(s) {
		return strconv.ParseInt(s, 10, 64)
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac := s[:len(s)-3], s[len(s)-2:]
	// strip thousands separators from the whole part
	whole = strings.NewReplacer(",", "", ".", "").Replace(whole)
	if whole == "" {
		whole = "0"
	}
	n, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		n = -n
	}
	return n, nil
}
