// Package identity implements codegate's account foundation.
//
// It contains contact classification/normalization, one-time code
// generation, and the account store interfaces used by the HTTP layer.
//
// This package is intentionally dependency-light and security-first.
package identity
