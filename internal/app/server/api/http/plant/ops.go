package plant

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "plants-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/plants",
		Summary:     "Список растений пользователя",
		Tags:        []string{"plants"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "plants-create",
		Method:        http.MethodPost,
		Path:          "/api/v1/plants",
		Summary:       "Создать растение",
		Description:   "Идемпотентно по заголовку Idempotency-Key: повтор возвращает ранее созданную строку.",
		Tags:          []string{"plants"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) findOp() huma.Operation {
	return huma.Operation{
		OperationID: "plants-find",
		Method:      http.MethodGet,
		Path:        "/api/v1/plants/{id}",
		Summary:     "Получить растение",
		Tags:        []string{"plants"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) updateOp() huma.Operation {
	return huma.Operation{
		OperationID: "plants-update",
		Method:      http.MethodPut,
		Path:        "/api/v1/plants/{id}",
		Summary:     "Обновить растение",
		Description: "Частичное обновление: отсутствующие поля не меняются, пустой location_id снимает локацию.",
		Tags:        []string{"plants"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID:   "plants-delete",
		Method:        http.MethodDelete,
		Path:          "/api/v1/plants/{id}",
		Summary:       "Удалить растение",
		Tags:          []string{"plants"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) photoOp() huma.Operation {
	return huma.Operation{
		OperationID: "plants-photo",
		Method:      http.MethodGet,
		Path:        "/api/v1/plants/{id}/photo",
		Summary:     "Фото растения",
		Tags:        []string{"plants"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
