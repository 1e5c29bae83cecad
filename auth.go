package pgwire

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/pgkit/pgwire/proto"
)

func (c *Conn) txPasswordMessage(password string) error {
	return c.frontend.SendFlush(&proto.PasswordMessage{Password: password})
}

func (c *Conn) rxAuthCleartext() error {
	return c.txPasswordMessage(c.config.Password)
}

// rxAuthMD5 answers an MD5 challenge. The server stores
// md5(password + user); the response salts that stored hash again with the
// per-connection salt.
func (c *Conn) rxAuthMD5(salt [4]byte) error {
	hashedPassword := "md5" + hexMD5(hexMD5(c.config.Password+c.config.User)+string(salt[:]))
	return c.txPasswordMessage(hashedPassword)
}

func hexMD5(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}
