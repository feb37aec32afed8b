package storage

import "errors"

// ErrEmailTaken is returned by CreateUser for a duplicate e-mail address.
var ErrEmailTaken = errors.New("email already registered")
