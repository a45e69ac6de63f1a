package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/wayfinder/internal/adapters/sensor"
	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/core/usecases"
)

const maxQueryLength = 200

type searchRequest struct {
	Query string `json:"query"`
}

type destinationRequest struct {
	Index *int `json:"index"`
}

type hoverRequest struct {
	Target domain.HoverTarget `json:"target"`
}

// PlacesResponse is returned by the stateless geocoding proxy.
type PlacesResponse struct {
	Query   string         `json:"query"`
	Results []domain.Place `json:"results"`
}

// lookupSession resolves :id and scopes the request logger to it.
func lookupSession(c *fiber.Ctx, deps *Dependencies) (*usecases.Session, error) {
	id := c.Params("id")
	withSessionLogger(c, id)
	return deps.Sessions.Get(id)
}

// sessionHandler wraps a handler that needs the session named by :id.
func sessionHandler(deps *Dependencies, fn func(c *fiber.Ctx, s *usecases.Session) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := lookupSession(c, deps)
		if err != nil {
			return errFromDomain(c, err)
		}
		return fn(c, s)
	}
}

// CreateSessionHandler opens a session. The body carries the browser's
// geolocation outcome; an empty body means geolocation is unavailable.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var reading sensor.Reported
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&reading); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}

		_, state := deps.Sessions.Create(c.UserContext(), reading)
		LoggerFromCtx(c.UserContext()).Info("session opened",
			"session", state.ID, "advisory", state.Advisory)
		return c.Status(fiber.StatusCreated).JSON(state)
	}
}

// GetSessionHandler returns the session snapshot.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		return c.JSON(s.Snapshot())
	})
}

// DeleteSessionHandler closes the session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if err := deps.Sessions.Delete(withSessionLogger(c, id), id); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SceneHandler returns the declarative map scene.
func SceneHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		return c.JSON(s.Scene())
	})
}

// SearchHandler runs a place search for the session. A failed lookup is not
// an HTTP error: the returned state carries the advisory and the old results.
func SearchHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		var req searchRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Query) > maxQueryLength {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		state, err := s.Search(c.UserContext(), req.Query)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("session search failed", "error", err)
		}
		return c.JSON(state)
	})
}

// DismissResultsHandler hides the result list.
func DismissResultsHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		return c.JSON(s.DismissResults(c.UserContext()))
	})
}

// SelectDestinationHandler picks a result and requests the route.
// With ?wait=true the response is sent once the route is resolved.
func SelectDestinationHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		var req destinationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Index == nil {
			return errBadRequest(c, "index is required")
		}

		task, state, err := s.SelectDestination(c.UserContext(), *req.Index)
		if err != nil {
			return errFromDomain(c, err)
		}
		if !c.QueryBool("wait", false) {
			return c.Status(fiber.StatusAccepted).JSON(state)
		}

		if _, err := task.Wait(c.UserContext()); err != nil {
			return errTimeout(c, "route not resolved in time")
		}
		return c.JSON(s.Snapshot())
	})
}

// ClearDestinationHandler removes the destination and route.
func ClearDestinationHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		return c.JSON(s.ClearDestination(c.UserContext()))
	})
}

// ResetViewHandler frames current location and destination again.
func ResetViewHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		state, ok := s.ResetView(c.UserContext())
		if !ok {
			return errConflict(c, "current location and destination are both required")
		}
		return c.JSON(state)
	})
}

func parseView(c *fiber.Ctx) (domain.ViewState, error) {
	var view domain.ViewState
	if err := c.BodyParser(&view); err != nil {
		return view, errors.New("invalid request body")
	}
	if err := view.Center.Validate(); err != nil {
		return view, err
	}
	return view, nil
}

// MoveViewHandler applies a user gesture.
func MoveViewHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		view, err := parseView(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		state, ok := s.MoveView(c.UserContext(), view)
		if !ok {
			return errConflict(c, "camera transition in progress")
		}
		return c.JSON(state)
	})
}

// ViewDoneHandler records the camera after a fit transition.
func ViewDoneHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		view, err := parseView(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.JSON(s.CompleteTransition(c.UserContext(), view))
	})
}

// HoverHandler sets the marker under the pointer.
func HoverHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		var req hoverRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		state, err := s.SetHover(c.UserContext(), req.Target)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		return c.JSON(state)
	})
}

// DismissAdvisoryHandler clears the advisory message.
func DismissAdvisoryHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, s *usecases.Session) error {
		return c.JSON(s.DismissAdvisory(c.UserContext()))
	})
}

// PlacesHandler geocodes q without a session. lon and lat, when both given,
// bias the ranking; otherwise the default location is used.
func PlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > maxQueryLength {
			return errBadRequest(c, "query too long (max 200 characters)")
		}

		var near *domain.GeoPoint
		lon, lat := c.Query("lon"), c.Query("lat")
		switch {
		case lon != "" && lat != "":
			p := domain.GeoPoint{Lon: c.QueryFloat("lon", 0), Lat: c.QueryFloat("lat", 0)}
			if err := p.Validate(); err != nil {
				return errBadRequest(c, err.Error())
			}
			near = &p
		case lon != "" || lat != "":
			return errBadRequest(c, "lon and lat must be given together")
		}

		places, err := deps.Search.Search(c.UserContext(), query, near)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("place search failed", "error", err)
			return errUpstream(c, "geocoding failed")
		}
		return c.JSON(PlacesResponse{Query: query, Results: places})
	}
}
