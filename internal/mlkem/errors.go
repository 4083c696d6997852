package mlkem

import "errors"

var errInvalidKeySize = errors.New("mlkem: invalid key or ciphertext size")
