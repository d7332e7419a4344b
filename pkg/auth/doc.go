// Package auth stores the API token for the text-to-image endpoint.
//
// Tokens are kept in the system keychain when one is available, otherwise in
// an AES-GCM encrypted file under the user config directory. The
// YTSHORTS_API_TOKEN environment variable is consulted last and is read-only.
package auth
