// Package httpapi wires the recommendation pipeline and the
// product/municipality endpoints into the Fiber app.
package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JuanD1P/AGRO-SABANA/internal/climate"
	"github.com/JuanD1P/AGRO-SABANA/internal/dates"
	"github.com/JuanD1P/AGRO-SABANA/internal/products"
	"github.com/JuanD1P/AGRO-SABANA/internal/recommend"
	"github.com/JuanD1P/AGRO-SABANA/pkg/metrics"
)

var validate = validator.New()

// Services collects the collaborators the routes need.
type Services struct {
	Recommender *recommend.Service
	Products    products.Source
	Climate     recommend.ClimateResolver
	Geocoder    climate.Resolver
	Metrics     *metrics.Collector
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svcs Services) {
	v1 := app.Group("/api/v1")

	if svcs.Metrics != nil {
		v1.Use(requestMetrics(svcs.Metrics))
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	v1.Get("/recomendaciones", func(c *fiber.Ctx) error {
		var req recommendQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := svcs.Recommender.TopN(c.Context(), req.Municipio, req.Fecha, req.N)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(res)
	})

	v1.Get("/municipios-productos", func(c *fiber.Ctx) error {
		munis, err := svcs.Products.Municipalities(c.Context())
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"ok": true, "data": munis})
	})

	v1.Get("/productos", func(c *fiber.Ctx) error {
		munis, err := svcs.Products.Municipalities(c.Context())
		if err != nil {
			return mapError(err)
		}
		// The source is link-shaped; flatten and dedupe by product id.
		seen := make(map[int64]bool)
		list := make([]products.Product, 0)
		for _, m := range munis {
			for _, p := range m.Products {
				if !seen[p.ID] {
					seen[p.ID] = true
					list = append(list, p)
				}
			}
		}
		return c.JSON(fiber.Map{"ok": true, "data": list})
	})

	v1.Post("/productos/interes", func(c *fiber.Ctx) error {
		var body interestBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cont, err := svcs.Products.AddInterest(c.Context(), body.Nombre)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"ok": true, "producto": body.Nombre, "cont": cont})
	})

	v1.Get("/clima/daily", func(c *fiber.Ctx) error {
		var req dailyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := svcs.Geocoder.Resolve(c.Context(), req.Place)
		if err != nil {
			return mapError(err)
		}
		report, err := svcs.Climate.ResolveDaily(c.Context(), loc, req.date)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(report)
	})

	// Admin surface. Authentication is handled by a fronting proxy.
	admin := v1.Group("/admin")

	admin.Post("/productos/init-cont", func(c *fiber.Ctx) error {
		if err := svcs.Products.InitPopularity(c.Context()); err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	admin.Patch("/productos/:id/cont", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
		}
		var body contBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := svcs.Products.SetPopularity(c.Context(), id, *body.Cont); err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"ok": true, "producto_id": id, "cont": *body.Cont})
	})
}

// recommendQuery holds the parameters of a ranking request.
type recommendQuery struct {
	Municipio string `validate:"required"`
	Fecha     string `validate:"required"`
	N         int    `validate:"omitempty,min=1,max=20"`
}

func (r *recommendQuery) bind(c *fiber.Ctx) error {
	r.Municipio = c.Query("municipio")
	r.Fecha = c.Query("fecha")
	if nStr := c.Query("n"); nStr != "" {
		n, err := strconv.Atoi(nStr)
		if err != nil {
			return errors.New("n must be an integer")
		}
		r.N = n
	}
	return validate.Struct(r)
}

// dailyQuery holds the parameters of a single climate lookup.
type dailyQuery struct {
	Place string `validate:"required"`
	Date  string `validate:"required"`

	date time.Time
}

func (d *dailyQuery) bind(c *fiber.Ctx) error {
	d.Place = c.Query("place")
	d.Date = c.Query("date")
	if err := validate.Struct(d); err != nil {
		return err
	}
	parsed, err := dates.ParseFlexible(d.Date)
	if err != nil {
		return errors.New("invalid date; use YYYY-MM-DD or a Spanish date")
	}
	d.date = parsed
	return nil
}

type interestBody struct {
	Nombre string `json:"nombre" validate:"required"`
}

type contBody struct {
	Cont *int `json:"cont" validate:"required,min=0"`
}

// mapError translates domain errors into HTTP responses.
func mapError(err error) error {
	switch {
	case errors.Is(err, products.ErrNotFound),
		errors.Is(err, climate.ErrLocationNotFound),
		errors.Is(err, climate.ErrNoData):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	var ue *climate.UpstreamError
	if errors.As(err, &ue) {
		status := fiber.StatusBadGateway
		if ue.Status >= 400 && ue.Status < 600 {
			status = ue.Status
		}
		return fiber.NewError(status, ue.Error())
	}

	var se *products.SourceError
	if errors.As(err, &se) {
		return fiber.NewError(fiber.StatusServiceUnavailable, se.Error())
	}

	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

// requestMetrics records per-endpoint counters and latency.
func requestMetrics(m *metrics.Collector) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		endpoint := c.Route().Path
		m.RecordAPIRequest(endpoint, c.Method(), strconv.Itoa(status))
		m.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		return err
	}
}
