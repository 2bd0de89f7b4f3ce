package database

import (
	"bytes"
	"hash/crc32"
)

const advisoryLockIDSalt uint32 = 1486364155

// GenerateAdvisoryLockID derives a datastore-wide advisory lock key from a
// database name and optional qualifiers (schema, table). The qualifiers come
// first and the database name last, NUL-separated. Inspired by the
// scheme rails migrations use, see https://goo.gl/8o9bCT. The CRC32 checksum
// is widened to int64 after the salt multiplication so callers can hand it
// straight to a signed bigint lock primitive.
func GenerateAdvisoryLockID(databaseName string, additionalNames ...string) (int64, error) {
	buf := new(bytes.Buffer)
	for _, name := range additionalNames {
		buf.WriteString(name)
		buf.WriteByte(0)
	}
	buf.WriteString(databaseName)
	sum := crc32.ChecksumIEEE(buf.Bytes()) * advisoryLockIDSalt
	return int64(sum), nil
}
