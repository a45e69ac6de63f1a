package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/wayfinder/internal/core/domain"
	"github.com/samirrijal/wayfinder/internal/core/usecases"
)

func geoPointMap(p domain.GeoPoint) map[string]interface{} {
	return map[string]interface{}{"lon": p.Lon, "lat": p.Lat}
}

func placeMap(p *domain.Place) map[string]interface{} {
	if p == nil {
		return nil
	}
	return map[string]interface{}{"name": p.Name, "location": geoPointMap(p.Location)}
}

func placesList(places []domain.Place) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(places))
	for i := range places {
		out = append(out, placeMap(&places[i]))
	}
	return out
}

// sessionMap converts a snapshot for the default field resolvers.
func sessionMap(s domain.SessionState) map[string]interface{} {
	m := map[string]interface{}{
		"id":              s.ID,
		"phase":           string(s.Phase),
		"query":           s.Query,
		"results":         placesList(s.Results),
		"results_visible": s.ResultsVisible,
		"view": map[string]interface{}{
			"center":  geoPointMap(s.View.Center),
			"zoom":    s.View.Zoom,
			"pitch":   s.View.Pitch,
			"bearing": s.View.Bearing,
		},
		"transitioning":    s.Transitioning,
		"loading":          s.Loading,
		"advisory":         s.Advisory,
		"hover":            string(s.Hover),
		"route_generation": int(s.RouteGeneration),
	}
	if s.CurrentLocation != nil {
		m["current_location"] = placeMap(s.CurrentLocation)
	}
	if s.Destination != nil {
		m["destination"] = placeMap(s.Destination)
	}
	if s.Route != nil {
		coords := make([][]float64, 0)
		for _, p := range s.Route.Path() {
			coords = append(coords, []float64{p.Lon, p.Lat})
		}
		m["route"] = map[string]interface{}{
			"source":           string(s.Route.Source),
			"distance_meters":  s.Route.DistanceMeters,
			"duration_seconds": s.Route.DurationSeconds,
			"coordinates":      coords,
		}
	}
	return m
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lon": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{Type: graphql.Float},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: geoPointType},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"source":           &graphql.Field{Type: graphql.String},
			"distance_meters":  &graphql.Field{Type: graphql.Float},
			"duration_seconds": &graphql.Field{Type: graphql.Float},
			"coordinates":      &graphql.Field{Type: graphql.NewList(graphql.NewList(graphql.Float))},
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "View",
		Fields: graphql.Fields{
			"center":  &graphql.Field{Type: geoPointType},
			"zoom":    &graphql.Field{Type: graphql.Float},
			"pitch":   &graphql.Field{Type: graphql.Float},
			"bearing": &graphql.Field{Type: graphql.Float},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"phase":            &graphql.Field{Type: graphql.String},
			"current_location": &graphql.Field{Type: placeType},
			"destination":      &graphql.Field{Type: placeType},
			"query":            &graphql.Field{Type: graphql.String},
			"results":          &graphql.Field{Type: graphql.NewList(placeType)},
			"results_visible":  &graphql.Field{Type: graphql.Boolean},
			"route":            &graphql.Field{Type: routeType},
			"view":             &graphql.Field{Type: viewType},
			"transitioning":    &graphql.Field{Type: graphql.Boolean},
			"loading":          &graphql.Field{Type: graphql.Boolean},
			"advisory":         &graphql.Field{Type: graphql.String},
			"hover":            &graphql.Field{Type: graphql.String},
			"route_generation": &graphql.Field{Type: graphql.Int},
		},
	})

	session := func(p graphql.ResolveParams) (*usecases.Session, error) {
		return deps.Sessions.Get(p.Args["id"].(string))
	}
	idArg := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Current state of a session",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := session(p)
					if err != nil {
						return nil, err
					}
					return sessionMap(s.Snapshot()), nil
				},
			},
			"places": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "Geocode a free-text query",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lon":   &graphql.ArgumentConfig{Type: graphql.Float},
					"lat":   &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var near *domain.GeoPoint
					lon, okLon := p.Args["lon"].(float64)
					lat, okLat := p.Args["lat"].(float64)
					if okLon && okLat {
						pt := domain.GeoPoint{Lon: lon, Lat: lat}
						if err := pt.Validate(); err != nil {
							return nil, err
						}
						near = &pt
					}
					places, err := deps.Search.Search(p.Context, p.Args["query"].(string), near)
					if err != nil {
						return nil, err
					}
					return placesList(places), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"search": &graphql.Field{
				Type:        sessionType,
				Description: "Search for a destination within a session",
				Args: graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := session(p)
					if err != nil {
						return nil, err
					}
					// A failed search is reported through the advisory field.
					state, _ := s.Search(p.Context, p.Args["query"].(string))
					return sessionMap(state), nil
				},
			},
			"selectDestination": &graphql.Field{
				Type:        sessionType,
				Description: "Pick a search result and request the route to it",
				Args: graphql.FieldConfigArgument{
					"id":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"index": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := session(p)
					if err != nil {
						return nil, err
					}
					_, state, err := s.SelectDestination(p.Context, p.Args["index"].(int))
					if err != nil {
						return nil, err
					}
					return sessionMap(state), nil
				},
			},
			"clearDestination": &graphql.Field{
				Type:        sessionType,
				Description: "Remove the destination and its route",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := session(p)
					if err != nil {
						return nil, err
					}
					return sessionMap(s.ClearDestination(p.Context)), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
