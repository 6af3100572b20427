package domain

import (
	"crypto/rand"
	"regexp"
	"strconv"
	"strings"
)

const addressAlphabet = "0123456789abcdefABCDEF"

var (
	usernameCharset = regexp.MustCompile(`^[a-z0-9.]+$`)
	addressPattern  = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
)

// Repair describes one correction the normalizer applied to a record.
type Repair struct {
	Field  string
	From   string
	To     string
	Reason string
	// Destructive repairs replace a key callers may already hold (the address).
	Destructive bool
}

// Normalize enforces field-level invariants on a decoded record. Malformed
// fields are repaired rather than rejected: invalid usernames are cleared,
// invalid addresses regenerated, balances stripped of separators (or reset to
// zero), and types recapitalized or defaulted to Person. Normalize is
// idempotent: normalizing the result again yields no repairs.
func Normalize(rec WalletRecord) (Wallet, []Repair) {
	var repairs []Repair

	w := Wallet{
		Address:  rec.Address,
		Nickname: rec.Nickname,
		Username: rec.Username,
		Owner:    rec.Owner,
		Share:    rec.Share,
	}

	if w.Username != "" && !ValidUsername(w.Username) {
		repairs = append(repairs, Repair{
			Field:  "username",
			From:   w.Username,
			To:     "",
			Reason: "usernames must end in " + UsernameSuffix + " and contain only lowercase letters, numbers, and periods",
		})
		w.Username = ""
	}

	if !ValidAddress(w.Address) {
		addr := GenerateAddress()
		repairs = append(repairs, Repair{
			Field:       "address",
			From:        w.Address,
			To:          addr,
			Reason:      "address is not 40 hexadecimal characters; regenerated",
			Destructive: true,
		})
		w.Address = addr
	}

	balance, balanceRepair := normalizeBalance(rec.Balance)
	if balanceRepair != nil {
		repairs = append(repairs, *balanceRepair)
	}
	w.Balance = balance

	typ, ok := ParseWalletType(rec.Type)
	if !ok {
		typ = WalletTypePerson
	}
	if string(typ) != rec.Type {
		reason := "types can only be Person or Business; defaulting to Person"
		if ok {
			reason = "types must start with a capital letter"
		}
		repairs = append(repairs, Repair{Field: "type", From: rec.Type, To: string(typ), Reason: reason})
	}
	w.Type = typ

	return w, repairs
}

// NormalizeWallet re-validates an in-memory wallet before it is committed.
func NormalizeWallet(w Wallet) (Wallet, []Repair) {
	return Normalize(w.ToRecord())
}

// ValidUsername reports whether u is a well-formed, non-empty username.
func ValidUsername(u string) bool {
	return strings.HasSuffix(u, UsernameSuffix) && usernameCharset.MatchString(u)
}

// ValidAddress reports whether a is exactly 40 hexadecimal characters.
func ValidAddress(a string) bool {
	return addressPattern.MatchString(a)
}

// ParseWalletType matches s case-insensitively against the known types.
// An empty string selects Person.
func ParseWalletType(s string) (WalletType, bool) {
	switch strings.ToLower(s) {
	case "", "person":
		return WalletTypePerson, s != ""
	case "business":
		return WalletTypeBusiness, true
	}
	return "", false
}

// GenerateAddress returns 40 characters drawn uniformly from the mixed-case
// hex alphabet using crypto/rand.
func GenerateAddress() string {
	// Largest multiple of len(addressAlphabet) that fits in a byte; bytes at or
	// above it are rejected so every character is equally likely.
	const limit = 256 - 256%len(addressAlphabet)

	out := make([]byte, 0, AddressLength)
	buf := make([]byte, AddressLength*2)
	for len(out) < AddressLength {
		rand.Read(buf) // never returns an error
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, addressAlphabet[int(b)%len(addressAlphabet)])
			if len(out) == AddressLength {
				break
			}
		}
	}
	return string(out)
}

// normalizeBalance strips thousands separators and decimal points (whole
// units only) and resets anything that is still not a plain integer to zero.
func normalizeBalance(raw string) (int64, *Repair) {
	cleaned := strings.NewReplacer(",", "", ".", "").Replace(raw)

	if cleaned == "" || strings.TrimLeft(cleaned, "0123456789") != "" {
		return 0, &Repair{Field: "balance", From: raw, To: "0", Reason: "balance must be a number"}
	}

	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, &Repair{Field: "balance", From: raw, To: "0", Reason: "balance is out of range"}
	}

	if cleaned != raw {
		return v, &Repair{Field: "balance", From: raw, To: cleaned, Reason: "removed separators from balance"}
	}
	return v, nil
}

func formatBalance(b int64) string {
	return strconv.FormatInt(b, 10)
}
