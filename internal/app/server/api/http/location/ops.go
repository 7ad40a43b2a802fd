package location

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) listOp() huma.Operation {
	return huma.Operation{
		OperationID: "locations-list",
		Method:      http.MethodGet,
		Path:        "/api/v1/locations",
		Summary:     "Список локаций в порядке sort_index",
		Tags:        []string{"locations"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "locations-create",
		Method:        http.MethodPost,
		Path:          "/api/v1/locations",
		Summary:       "Создать локацию",
		Tags:          []string{"locations"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) updateOp() huma.Operation {
	return huma.Operation{
		OperationID: "locations-update",
		Method:      http.MethodPut,
		Path:        "/api/v1/locations/{id}",
		Summary:     "Обновить локацию",
		Tags:        []string{"locations"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID:   "locations-delete",
		Method:        http.MethodDelete,
		Path:          "/api/v1/locations/{id}",
		Summary:       "Удалить локацию",
		Description:   "Растения в этой локации остаются без локации.",
		Tags:          []string{"locations"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}
