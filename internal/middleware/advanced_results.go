package middleware

import (
	"github.com/anonto42/nano-social/backend/internal/query"
	"github.com/labstack/echo/v4"
)

const resultsKey = "advancedResults"

// AdvancedResults runs the filtered, paginated read described by spec and
// leaves the page on the context for the handler. Requests carrying any of
// the bypass parameters are passed through untouched.
func AdvancedResults(runner query.Runner, spec query.Spec, bypass ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			params := c.QueryParams()
			for _, p := range bypass {
				if params.Get(p) != "" {
					return next(c)
				}
			}

			results, err := runner.Run(c.Request().Context(), params, spec)
			if err != nil {
				return err
			}
			c.Set(resultsKey, results)
			return next(c)
		}
	}
}

// Results returns the page stored by AdvancedResults.
func Results(c echo.Context) (*query.Results, bool) {
	results, ok := c.Get(resultsKey).(*query.Results)
	return results, ok && results != nil
}
