package domain

import (
	"strings"
	"time"
)

// Vendor identifies which AI provider an API key belongs to.
type Vendor string

const (
	VendorOpenAI    Vendor = "openai"
	VendorAnthropic Vendor = "anthropic"
	VendorGoogle    Vendor = "google"
	VendorAzure     Vendor = "azure"
)

// Vendors lists every accepted vendor value.
var Vendors = []Vendor{VendorOpenAI, VendorAnthropic, VendorGoogle, VendorAzure}

// ValidVendor reports whether v is on the allow-list.
func ValidVendor(v Vendor) bool {
	switch v {
	case VendorOpenAI, VendorAnthropic, VendorGoogle, VendorAzure:
		return true
	}
	return false
}

// PlausibleKey applies the per-vendor shape check to a plaintext API key.
// OpenAI keys must carry the sk- prefix; every vendor requires more than
// 20 characters.
func PlausibleKey(v Vendor, key string) bool {
	switch v {
	case VendorOpenAI:
		return strings.HasPrefix(key, "sk-") && len(key) > 20
	case VendorAnthropic, VendorGoogle, VendorAzure:
		return len(key) > 20
	}
	return false
}

// MaskKey renders a plaintext key for listings: first four characters
// followed by eight asterisks. Empty input stays empty.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	prefix := key
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return prefix + "********"
}

// Credential is a vendor API key held in custody for its owner. EncryptedKey
// is the vault ciphertext; plaintext never lands in the store.
type Credential struct {
	ID           string
	OwnerID      string
	Vendor       Vendor
	EncryptedKey string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
