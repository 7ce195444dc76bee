package models

import "github.com/google/uuid"

// assignID fills a zero UUID primary key before insert. IDs are generated
// client-side so the models behave identically on Postgres and the sqlite
// driver used in tests.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
