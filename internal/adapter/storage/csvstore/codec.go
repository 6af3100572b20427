// Package csvstore persists the ledger as a single CSV file.
package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"splatchain-ledger/internal/core/domain"
)

// Column names, in the order they are written.
const (
	ColAddress  = "address"
	ColNickname = "nickname"
	ColUsername = "username"
	ColType     = "type"
	ColOwner    = "owner"
	ColBalance  = "balance"
	ColShare    = "share"
)

// Header is the first row of every encoded ledger.
var Header = []string{ColAddress, ColNickname, ColUsername, ColType, ColOwner, ColBalance, ColShare}

const shareTrue = "True"

// Decode reads a header row followed by one row per wallet. Columns are
// matched by header name, so reordered or extra columns are tolerated and a
// missing column decodes as empty. Field values are not validated here.
// Input with no header decodes to zero records.
func Decode(r io.Reader) ([]domain.WalletRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []domain.WalletRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(records)+2, err)
		}
		records = append(records, domain.WalletRecord{
			Address:  field(row, ColAddress),
			Nickname: field(row, ColNickname),
			Username: field(row, ColUsername),
			Type:     field(row, ColType),
			Owner:    field(row, ColOwner),
			Balance:  field(row, ColBalance),
			Share:    field(row, ColShare) == shareTrue,
		})
	}
	return records, nil
}

// Encode writes wallets with a header row. share is written as True/False.
func Encode(w io.Writer, wallets []domain.Wallet) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := range wallets {
		rec := wallets[i].ToRecord()
		share := "False"
		if rec.Share {
			share = shareTrue
		}
		row := []string{rec.Address, rec.Nickname, rec.Username, rec.Type, rec.Owner, rec.Balance, share}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing wallet %s: %w", rec.Address, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
