package attendance

import "context"

// EventRepository - граница ингестии: выдаёт все события посещаемости школы.
// Результат неупорядочен; контракт предполагает, что выборка одной школы
// помещается в память целиком.
type EventRepository interface {
	// ListBySchool returns every attendance event recorded for the school.
	ListBySchool(ctx context.Context, schoolID string) ([]Event, error)

	// ListSchoolIDs enumerates the distinct school identifiers that have
	// at least one attendance event.
	ListSchoolIDs(ctx context.Context) ([]string, error)
}
