// Package common contains shared constants and sentinel errors used across
// the verifier, the encryptor and the upload client.
package common

// VerifyWindowSize is the number of bundle bytes folded into the running
// digest per read.
const VerifyWindowSize = 5 * 1024 * 1024

// ChunkDelimiter joins base64 ciphertext chunks of one credential. It cannot
// occur inside standard base64 output.
const ChunkDelimiter = ":::"

// RequestIDHeaderName is the HTTP header carrying the per-upload request id.
const RequestIDHeaderName = "X-Request-ID"
