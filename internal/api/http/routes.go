package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/yuhsiangw/air-quality-aggregation/internal/airquality"
	"github.com/yuhsiangw/air-quality-aggregation/internal/jobs"
	"github.com/yuhsiangw/air-quality-aggregation/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *airquality.Service, runner *jobs.Runner, tz *time.Location) {
	v1 := app.Group("/api/v1/airquality")

	v1.Get("/current", func(c *fiber.Ctx) error {
		snap, err := service.CurrentSnapshot(c.Context())
		if err != nil {
			return queryErrorToHTTP(err)
		}

		if c.Query("format") == "text" {
			return c.SendString(airquality.FormatSnapshot(snap, service.ReportConfig()))
		}
		return c.JSON(snap)
	})

	v1.Get("/current/history", func(c *fiber.Ctx) error {
		fromStr, toStr := c.Query("from"), c.Query("to")
		if fromStr == "" || toStr == "" {
			return fiber.NewError(fiber.StatusBadRequest, "from and to query parameters are required")
		}

		from, err := parseTime(fromStr)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		to, err := parseTime(toStr)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshots, err := service.SnapshotRange(from, to)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no snapshots for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch snapshot history")
		}

		return c.JSON(fiber.Map{
			"from":      from,
			"to":        to,
			"snapshots": snapshots,
		})
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		req, err := bindRangeQuery(c, tz)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		switch req.Format {
		case "text":
			text, err := service.QueryHistorical(c.Context(), req.Start, req.End)
			if err != nil {
				return queryErrorToHTTP(err)
			}
			return c.SendString(text)
		case "csv":
			table, err := service.QueryDaily(c.Context(), req.Start, req.End)
			if err != nil {
				return queryErrorToHTTP(err)
			}
			out, err := airquality.FormatCSV(table)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to render csv")
			}
			c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
			c.Set(fiber.HeaderContentDisposition, `attachment; filename="daily_averages.csv"`)
			return c.SendString(out)
		default:
			table, err := service.QueryDaily(c.Context(), req.Start, req.End)
			if err != nil {
				return queryErrorToHTTP(err)
			}
			return c.JSON(fiber.Map{
				"start": req.Start.Format(airquality.DateLayout),
				"end":   req.End.Format(airquality.DateLayout),
				"daily": table,
			})
		}
	})

	// Multi-day queries can run for a while; jobs let callers acknowledge
	// immediately and poll.
	v1.Post("/history/jobs", func(c *fiber.Ctx) error {
		req, err := bindRangeQuery(c, tz)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		id := runner.Submit(func() (string, error) {
			// Not tied to the request context: the job outlives the request.
			return service.QueryHistorical(context.Background(), req.Start, req.End)
		})

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": id})
	})

	v1.Get("/history/jobs/:id", func(c *fiber.Ctx) error {
		job, ok := runner.Get(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown job id")
		}
		return c.JSON(job)
	})
}

// queryErrorToHTTP maps orchestrator error kinds onto status codes; the
// user-facing message passes through untouched.
func queryErrorToHTTP(err error) error {
	var qe *airquality.QueryError
	if !errors.As(err, &qe) {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	switch qe.Kind {
	case airquality.ErrInvalidRange:
		return fiber.NewError(fiber.StatusBadRequest, qe.Message)
	case airquality.ErrNoData:
		return fiber.NewError(fiber.StatusNotFound, qe.Message)
	case airquality.ErrProviderUnavailable:
		return fiber.NewError(fiber.StatusServiceUnavailable, qe.Message)
	default:
		return fiber.NewError(fiber.StatusInternalServerError, qe.Message)
	}
}

// rangeQuery holds query parameters for the historical endpoints.
type rangeQuery struct {
	Start  time.Time `validate:"required"`
	End    time.Time `validate:"required,gtefield=Start"`
	Format string
}

func bindRangeQuery(c *fiber.Ctx, tz *time.Location) (rangeQuery, error) {
	var q rangeQuery

	startStr, endStr := c.Query("start"), c.Query("end")
	if startStr == "" || endStr == "" {
		return q, errors.New("start and end query parameters are required")
	}

	start, err := parseDate(startStr, tz)
	if err != nil {
		return q, err
	}
	end, err := parseDate(endStr, tz)
	if err != nil {
		return q, err
	}

	q.Start = start
	q.End = end
	q.Format = c.Query("format")

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// parseDate accepts a calendar date as 2006-01-02 or 2006/01/02 in the
// display zone.
func parseDate(s string, tz *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006/01/02"} {
		if ts, err := time.ParseInLocation(layout, s, tz); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("invalid date format; use YYYY-MM-DD")
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
