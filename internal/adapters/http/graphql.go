package http

import (
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/sztanko/madeira-pass/internal/core/usecases"
)

// buildSchema creates the read-only GraphQL schema wired to our
// services. Mutations (marking passes, feeding fixes) stay REST/WS
// only so there is a single write path to reason about.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Point",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	geometryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Geometry",
		Fields: graphql.Fields{
			"kind":  &graphql.Field{Type: graphql.String},
			"point": &graphql.Field{Type: pointType},
			"lines": &graphql.Field{Type: graphql.NewList(graphql.NewList(pointType))},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"name":             &graphql.Field{Type: graphql.String},
			"island":           &graphql.Field{Type: graphql.String},
			"requires_payment": &graphql.Field{Type: graphql.Boolean},
			"geometry":         &graphql.Field{Type: geometryType},
		},
	})

	nearestType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearestResult",
		Fields: graphql.Fields{
			"route":            &graphql.Field{Type: routeType},
			"distance_meters":  &graphql.Field{Type: graphql.Float},
			"within_threshold": &graphql.Field{Type: graphql.Boolean},
		},
	})

	passType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pass",
		Fields: graphql.Fields{
			"route_id":  &graphql.Field{Type: graphql.String},
			"paid_date": &graphql.Field{Type: graphql.String},
		},
	})

	decisionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Decision",
		Fields: graphql.Fields{
			"nearest_route_id": &graphql.Field{Type: graphql.String},
			"nearest_route":    &graphql.Field{Type: routeType},
			"distance_meters":  &graphql.Field{Type: graphql.Float},
			"within_threshold": &graphql.Field{Type: graphql.Boolean},
			"paid":             &graphql.Field{Type: graphql.Boolean},
			"action":           &graphql.Field{Type: graphql.String},
			"selected":         &graphql.Field{Type: graphql.Boolean},
		},
	})

	statusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteStatus",
		Fields: graphql.Fields{
			"route_id": &graphql.Field{Type: graphql.String},
			"status":   &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"routes": &graphql.Field{
				Type:        graphql.NewList(routeType),
				Description: "List catalogue routes",
				Args: graphql.FieldConfigArgument{
					"island":           &graphql.ArgumentConfig{Type: graphql.String},
					"requires_payment": &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var filter usecases.RouteFilter
					if island, ok := p.Args["island"].(string); ok {
						filter.Island = island
					}
					if rp, ok := p.Args["requires_payment"].(bool); ok {
						filter.RequiresPayment = &rp
					}
					return deps.Routes.List(p.Context, filter), nil
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Get a route by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Routes.Get(p.Context, p.Args["id"].(string))
				},
			},
			"nearest": &graphql.Field{
				Type:        nearestType,
				Description: "Nearest route to a coordinate",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					route, dist, within := deps.Routes.Nearest(p.Context,
						p.Args["lat"].(float64), p.Args["lon"].(float64))
					result := map[string]interface{}{
						"route":            route,
						"within_threshold": within,
					}
					if !math.IsInf(dist, 1) {
						result["distance_meters"] = dist
					}
					return result, nil
				},
			},
			"passes": &graphql.Field{
				Type:        graphql.NewList(passType),
				Description: "Today's active paid marks",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Ledger.Active(p.Context), nil
				},
			},
			"decision": &graphql.Field{
				Type:        decisionType,
				Description: "Latest proximity decision",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					d := deps.Proximity.Current()
					result := map[string]interface{}{
						"nearest_route_id": d.NearestRouteID,
						"nearest_route":    d.NearestRoute,
						"within_threshold": d.WithinThreshold,
						"paid":             d.Paid,
						"action":           string(d.Action),
						"selected":         d.Selected,
					}
					if !math.IsInf(d.DistanceMeters, 1) {
						result["distance_meters"] = d.DistanceMeters
					}
					return result, nil
				},
			},
			"statuses": &graphql.Field{
				Type:        graphql.NewList(statusType),
				Description: "Operational status per route",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					statuses := deps.Routes.Statuses(p.Context)
					result := make([]map[string]interface{}, 0, len(statuses))
					for id, st := range statuses {
						result = append(result, map[string]interface{}{
							"route_id": id,
							"status":   string(st),
						})
					}
					return result, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
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
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
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
