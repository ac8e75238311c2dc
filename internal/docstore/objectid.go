package docstore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"knowledgeforge/internal/apperr"
)

// validateObjectID rejects anything that is not a 24-hex ObjectId before a
// query reaches MongoDB, per spec.md §4.10.
func validateObjectID(name, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.New(apperr.CodeValidation, fmt.Sprintf("%s %q is not a valid id", name, id))
	}
	return oid, nil
}
