package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/datacommons-federation/internal/federation"
)

var validate = validator.New()

// NewApp builds the Fiber app with middleware, health, metrics and API routes.
func NewApp(service *federation.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "datacommons-federation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "datacommons-federation",
			"providers": service.Providers(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	RegisterRoutes(app, service)
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *federation.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/places", func(c *fiber.Ctx) error {
		q := placeQuery{Names: queryValues(c, "name")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "at least one name query parameter is required")
		}

		places, err := service.ResolvePlaces(c.UserContext(), q.Names)
		if err != nil {
			return providerError(err, "failed to resolve places")
		}
		return c.JSON(fiber.Map{"queryToPlaces": places})
	})

	v1.Get("/places/child-types", func(c *fiber.Ctx) error {
		q := childTypeQuery{PlaceID: strings.TrimSpace(c.Query("dcid"))}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "dcid query parameter is required")
		}

		types, err := service.ChildPlaceTypes(c.UserContext(), q.PlaceID)
		if err != nil {
			return providerError(err, "failed to fetch child place types")
		}
		return c.JSON(fiber.Map{"placeDcid": q.PlaceID, "childPlaceTypes": types})
	})

	v1.Get("/variables", func(c *fiber.Ctx) error {
		q := variableQuery{Queries: queryValues(c, "q")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "at least one q query parameter is required")
		}

		return c.JSON(fiber.Map{"matches": service.ResolveVariables(c.UserContext(), q.Queries)})
	})

	v1.Get("/variables/match", func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return fiber.NewError(fiber.StatusBadRequest, "q query parameter is required")
		}

		match := service.ResolveVariable(c.UserContext(), query)
		if err := match.Err(); err != nil {
			return providerError(err, "no variable matches "+query)
		}
		return c.JSON(match)
	})

	v1.Post("/observations", func(c *fiber.Ctx) error {
		var in federation.SelectorInput
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		sel, err := federation.NewObservationSelector(in)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		resp, err := service.FetchObservations(c.UserContext(), sel)
		if err != nil {
			return fiber.NewError(fiber.StatusGatewayTimeout, "observation fetch did not complete")
		}
		return c.JSON(resp)
	})
}

// placeQuery holds query parameters for place resolution.
type placeQuery struct {
	Names []string `validate:"required,min=1,dive,required"`
}

// childTypeQuery holds query parameters for the child place type lookup.
type childTypeQuery struct {
	PlaceID string `validate:"required"`
}

// variableQuery holds query parameters for variable resolution.
type variableQuery struct {
	Queries []string `validate:"required,min=1,dive,required"`
}

// queryValues returns every non-empty value of a repeated query parameter.
func queryValues(c *fiber.Ctx, key string) []string {
	var out []string
	for _, v := range c.Context().QueryArgs().PeekMulti(key) {
		if s := strings.TrimSpace(string(v)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func providerError(err error, msg string) error {
	switch {
	case errors.Is(err, federation.ErrNoMatch):
		return fiber.NewError(fiber.StatusNotFound, msg)
	case errors.Is(err, federation.ErrProviderUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, msg)
	default:
		return fiber.NewError(fiber.StatusInternalServerError, msg)
	}
}
