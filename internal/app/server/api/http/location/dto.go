package location

import "plantkeeper/internal/domain/location"

type listOutput struct {
	Body []location.Location
}

type idInput struct {
	ID string `path:"id" doc:"ID локации"`
}

type createInput struct {
	IdempotencyKey string `header:"Idempotency-Key"`
	Body           location.CreateRequest
}

type updateInput struct {
	ID   string `path:"id" doc:"ID локации"`
	Body location.UpdateRequest
}

type output struct {
	Body *location.Location
}
