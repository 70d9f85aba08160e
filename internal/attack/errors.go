package attack

import "errors"

// ErrUnknownAttack is returned by Run for an unrecognised attack name.
var ErrUnknownAttack = errors.New("attack: unknown attack")
