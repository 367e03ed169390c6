package registry

import (
	"errors"
	"fmt"

	"github.com/analyticshq/metastore"
)

// ProjectAlreadyExistsError is used when creating a project whose name is
// taken.
func ProjectAlreadyExistsError(name string) *metastore.Error {
	return &metastore.Error{
		Code: metastore.EConflict,
		Msg:  fmt.Sprintf("project %q already exists", name),
	}
}

// ProjectNotFoundError is used when the project cannot be found.
func ProjectNotFoundError(name string) *metastore.Error {
	return &metastore.Error{
		Code: metastore.ENotFound,
		Msg:  fmt.Sprintf("project %q not found", name),
	}
}

// EmptyNameError is used when a project, collection or field name is empty.
func EmptyNameError(kind string) *metastore.Error {
	return &metastore.Error{
		Code: metastore.EInvalid,
		Msg:  fmt.Sprintf("%s name is empty", kind),
	}
}

// InvalidNameError is used when a name contains the key separator.
func InvalidNameError(kind, name string) *metastore.Error {
	return &metastore.Error{
		Code: metastore.EInvalid,
		Msg:  fmt.Sprintf("%s name %q must not contain %q", kind, name, nameSeparator),
	}
}

// InvalidKeyTypeError is used when a key slot name is unknown.
func InvalidKeyTypeError(t metastore.KeyType) *metastore.Error {
	return &metastore.Error{
		Code: metastore.EInvalid,
		Msg:  fmt.Sprintf("unknown access key type %q", t),
	}
}

// TokenNotFoundError is used when a token has no index entry.
var TokenNotFoundError = &metastore.Error{
	Code: metastore.ENotFound,
	Msg:  "token not found",
}

// KeySetNotFoundError is used when an access key set id is unknown.
func KeySetNotFoundError(id uint64) *metastore.Error {
	return &metastore.Error{
		Code: metastore.ENotFound,
		Msg:  fmt.Sprintf("access key set %d not found", id),
	}
}

// TokenAlreadyIndexedError is used when a generated token collides with an
// existing one.
var TokenAlreadyIndexedError = &metastore.Error{
	Code: metastore.EConflict,
	Msg:  "token already exists",
}

// ErrCorruptData is used when a stored record cannot be decoded.
func ErrCorruptData(err error) *metastore.Error {
	return &metastore.Error{
		Code: metastore.EInternal,
		Msg:  "corrupt record",
		Err:  err,
	}
}

// ErrUnprocessableData is used when a record cannot be encoded.
func ErrUnprocessableData(err error) *metastore.Error {
	return &metastore.Error{
		Code: metastore.EInternal,
		Msg:  "unprocessable record",
		Err:  err,
	}
}

// ErrInternalServiceError wraps unexpected store failures, preserving
// already-coded errors as they are.
func ErrInternalServiceError(err error) error {
	if err == nil {
		return nil
	}
	var e *metastore.Error
	if errors.As(err, &e) {
		return err
	}
	return &metastore.Error{
		Code: metastore.EInternal,
		Err:  err,
	}
}
