package middleware

import "github.com/gofiber/fiber/v2"

// NoStore marks responses as uncacheable. Chat answers and extracted document
// text must not end up in shared caches.
func NoStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		c.Set(fiber.HeaderCacheControl, "no-store")
		c.Set("Pragma", "no-cache")
		return err
	}
}
