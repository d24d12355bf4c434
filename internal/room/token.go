// Package room defines the structured identity of a buyer-seller-product
// conversation and its wire token encoding.
//
// A room token is three segments joined by "--": the product id, the buyer
// email and the seller email. Segments are percent-encoded so that segment
// values can never collide with the delimiter; in particular "-" itself is
// escaped, which the usual URI component escaping does not do.
package room

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Delimiter separates the three token segments.
const Delimiter = "--"

// ErrMalformedToken reports a token that does not decompose into exactly
// three decodable segments.
var ErrMalformedToken = errors.New("malformed room token")

// Side tags which half of the conversation an identity belongs to.
type Side int

const (
	SideNone Side = iota
	SideBuyer
	SideSeller
)

func (s Side) String() string {
	switch s {
	case SideBuyer:
		return "buyer"
	case SideSeller:
		return "seller"
	default:
		return "none"
	}
}

// ID is the decoded identity of a conversation room.
type ID struct {
	Product string
	Buyer   string // decoded email
	Seller  string // decoded email
}

// Encode serializes the ID into its wire token.
func (id ID) Encode() string {
	return escape(id.Product) + Delimiter + escape(id.Buyer) + Delimiter + escape(id.Seller)
}

// Parse decomposes a wire token into its ID. Tokens produced by browser
// clients use encodeURIComponent on the email segments, so decoding must not
// treat "+" as a space.
func Parse(token string) (ID, error) {
	parts := strings.Split(token, Delimiter)
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	segments := make([]string, 3)
	for i, p := range parts {
		if p == "" {
			return ID{}, fmt.Errorf("%w: empty segment %d", ErrMalformedToken, i+1)
		}
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return ID{}, fmt.Errorf("%w: segment %d: %v", ErrMalformedToken, i+1, err)
		}
		segments[i] = decoded
	}

	return ID{Product: segments[0], Buyer: segments[1], Seller: segments[2]}, nil
}

// SideOf reports which side of the room the given email sits on.
func (id ID) SideOf(email string) Side {
	switch email {
	case id.Buyer:
		return SideBuyer
	case id.Seller:
		return SideSeller
	default:
		return SideNone
	}
}

// Counterpart returns the identity opposite the sender and its side. ok is
// false when the sender matches neither participant.
func (id ID) Counterpart(sender string) (email string, side Side, ok bool) {
	switch id.SideOf(sender) {
	case SideBuyer:
		return id.Seller, SideSeller, true
	case SideSeller:
		return id.Buyer, SideBuyer, true
	default:
		return "", SideNone, false
	}
}

// unreserved characters kept literal by escape. This is encodeURIComponent's
// unreserved set minus "-", so no segment can ever contain the delimiter.
func isUnreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

const upperhex = "0123456789ABCDEF"

func escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}
	return b.String()
}
