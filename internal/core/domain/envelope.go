package domain

// EnvelopeSchemaVersion is the envelope layout this build writes and reads.
const EnvelopeSchemaVersion = 1

// EncryptedEnvelope is the authenticated ciphertext exchanged with the remote store.
// Binary fields are standard Base64. Timestamp is Unix milliseconds.
type EncryptedEnvelope struct {
	Ciphertext    string `json:"data"`
	IV            string `json:"iv"`
	Salt          string `json:"salt"`
	AuthTag       string `json:"tag"`
	Timestamp     int64  `json:"timestamp"`
	SchemaVersion int    `json:"version"`
}
