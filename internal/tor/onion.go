package tor

import (
	"encoding/base32"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionV3Length is the length of a v3 onion address without the ".onion" suffix.
	OnionV3Length = 56

	// OnionV3Version is the version byte for v3 onion addresses.
	OnionV3Version = 0x03

	// OnionSuffix is the common suffix for all onion addresses.
	OnionSuffix = ".onion"
)

// Onion address validation errors.
var (
	// ErrInvalidOnionAddress is returned when an address is not a valid v3 onion address.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2AddressDeprecated is returned for v2 addresses, which stopped
	// working in October 2021.
	ErrV2AddressDeprecated = errors.New("v2 onion addresses are deprecated and no longer functional")
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
)

// checksumPrefix is the prefix of the v3 checksum input (rend-spec-v3).
var checksumPrefix = []byte(".onion checksum")

// IsValidV3Address checks the format and checksum of a v3 onion address.
// Subdomains are not accepted; pass the bare service address.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}

	// pubkey (32) || checksum (2) || version (1)
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != OnionV3Version {
		return false
	}

	expected := computeV3Checksum(pubkey, version)
	return checksum[0] == expected[0] && checksum[1] == expected[1]
}

// computeV3Checksum returns the first 2 bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// IsV2Address checks if the given address matches the v2 onion address format.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// IsOnionTarget reports whether the host of target ends in ".onion".
func IsOnionTarget(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), OnionSuffix)
}

// ValidateOnionTarget checks that an onion target names a valid v3 service.
// Subdomains of the service (e.g. www.<addr>.onion) are allowed.
func ValidateOnionTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return ErrInvalidOnionAddress
	}

	host := strings.ToLower(u.Hostname())
	labels := strings.Split(strings.TrimSuffix(host, OnionSuffix), ".")
	service := labels[len(labels)-1] + OnionSuffix

	if IsValidV3Address(service) {
		return nil
	}
	if IsV2Address(service) {
		return ErrV2AddressDeprecated
	}
	return ErrInvalidOnionAddress
}
