package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"ecostay/internal/app/uow"
)

const (
	transientTransactionLabel = "TransientTransactionError"
	writeConflictCode         = 112
)

// translate maps driver errors that mean "someone else wrote first" to
// uow.ErrStorageConflict: duplicate keys on version-filtered upserts and on
// the unique payment reference and idempotency key indexes, plus write
// conflicts inside a transaction.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return uow.ErrStorageConflict
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel(transientTransactionLabel) {
		return errors.Join(uow.ErrStorageConflict, err)
	}
	var server mongo.ServerError
	if errors.As(err, &server) && server.HasErrorCode(writeConflictCode) {
		return errors.Join(uow.ErrStorageConflict, err)
	}
	return err
}
