package plant

import "plantkeeper/internal/domain/plant"

type listOutput struct {
	Body []plant.Plant
}

type idInput struct {
	ID string `path:"id" doc:"ID растения"`
}

type createInput struct {
	IdempotencyKey string `header:"Idempotency-Key" doc:"Повторный запрос с тем же ключом вернет уже созданное растение"`
	Body           plant.CreateRequest
}

type updateInput struct {
	ID   string `path:"id" doc:"ID растения"`
	Body plant.UpdateRequest
}

type output struct {
	Body *plant.Plant
}

type photoOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}
