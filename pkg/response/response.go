package response

import "github.com/gofiber/fiber/v2"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the body shape of every JSON response.
type Envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(c *fiber.Ctx, code int, message string, data interface{}) error {
	return c.Status(code).JSON(Envelope{Status: StatusSuccess, Message: message, Data: data})
}

func Error(c *fiber.Ctx, code int, message string, data interface{}) error {
	return c.Status(code).JSON(Envelope{Status: StatusError, Message: message, Data: data})
}

// ErrorHandler renders errors that escape handlers (unknown routes, body
// limits, panics turned into errors) with the same envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return Error(c, code, err.Error(), nil)
}
