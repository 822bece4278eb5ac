package handler

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docchat/internal/storage"
)

// ServeObject streams objects from the in-memory store. It stands in for the
// object store's public endpoint when STORAGE_BACKEND=memory.
func ServeObject(objects storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, err := url.PathUnescape(c.Params("*"))
		if err != nil || key == "" {
			return writeError(c, fiber.StatusBadRequest, "INVALID_KEY", "invalid object key")
		}

		rc, info, err := objects.Get(c.UserContext(), key)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "object not found")
		}
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		if info.ContentType != "" {
			c.Set(fiber.HeaderContentType, info.ContentType)
		}
		if info.ETag != "" {
			c.Set(fiber.HeaderETag, strconv.Quote(info.ETag))
		}
		return c.SendStream(rc, int(info.Size))
	}
}
