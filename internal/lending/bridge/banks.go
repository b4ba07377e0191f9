package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"solana-lend-widget/internal/lending"
)

// bankJSON is one bank as serialized by the sidecar.
type bankJSON struct {
	Address       string    `json:"address"`
	Mint          string    `json:"mint"`
	TokenSymbol   string    `json:"tokenSymbol"`
	LendingRate   rateValue `json:"lendingRate"`
	BorrowingRate rateValue `json:"borrowingRate"`
	Error         string    `json:"error"`
}

// rateValue accepts a JSON string or number. Null leaves it empty;
// any other value is kept verbatim and fails decimal parsing downstream.
type rateValue string

func (r *rateValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*r = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = rateValue(s)
	default:
		*r = rateValue(b)
	}
	return nil
}

// bank implements lending.Bank over a decoded entry. key is the object key
// for keyed payloads; decodeErr is set when the entry itself was malformed.
type bank struct {
	key       string
	data      bankJSON
	decodeErr error
}

func (b *bank) Address() (string, error) {
	if b.decodeErr != nil {
		return "", b.decodeErr
	}
	if b.data.Address != "" {
		return b.data.Address, nil
	}
	if b.key != "" {
		return b.key, nil
	}
	return "", errors.New("bank address missing")
}

func (b *bank) Mint() (string, error) {
	if b.decodeErr != nil {
		return "", b.decodeErr
	}
	if b.data.Mint == "" {
		return "", errors.New("bank mint missing")
	}
	return b.data.Mint, nil
}

func (b *bank) TokenSymbol() string {
	return b.data.TokenSymbol
}

func (b *bank) InterestRates(_ context.Context) (lending.Rates, error) {
	if b.decodeErr != nil {
		return lending.Rates{}, b.decodeErr
	}
	if b.data.Error != "" {
		return lending.Rates{}, errors.New(b.data.Error)
	}
	return lending.Rates{
		Lending:   string(b.data.LendingRate),
		Borrowing: string(b.data.BorrowingRate),
	}, nil
}

func newBank(key string, raw json.RawMessage) *bank {
	b := &bank{key: key}
	if err := json.Unmarshal(raw, &b.data); err != nil {
		b.decodeErr = fmt.Errorf("decode bank: %w", err)
	}
	return b
}

// decodeBanks reads an array of banks or an object keyed by bank address.
// Object keys keep document order. A malformed entry becomes a bank whose
// accessors fail, so one bad entry does not lose the rest.
func decodeBanks(raw json.RawMessage) (lending.BankCollection, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return lending.BankCollection{}, err
	}

	switch tok {
	case nil:
		return lending.ListBanks(), nil

	case json.Delim('['):
		var list []lending.Bank
		for dec.More() {
			var entry json.RawMessage
			if err := dec.Decode(&entry); err != nil {
				return lending.BankCollection{}, err
			}
			list = append(list, newBank("", entry))
		}
		return lending.ListBanks(list...), nil

	case json.Delim('{'):
		var keys []string
		byKey := make(map[string]lending.Bank)
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return lending.BankCollection{}, err
			}
			key, _ := kt.(string)

			var entry json.RawMessage
			if err := dec.Decode(&entry); err != nil {
				return lending.BankCollection{}, err
			}
			if _, seen := byKey[key]; !seen {
				keys = append(keys, key)
			}
			byKey[key] = newBank(key, entry)
		}
		return lending.KeyedBanks(keys, byKey), nil
	}

	return lending.BankCollection{}, fmt.Errorf("unexpected banks payload starting with %v", tok)
}
