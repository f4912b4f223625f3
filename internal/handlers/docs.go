package handlers

import (
	"encoding/json"
	"net/http"
)

func jsonContent(schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

var errorSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"error":   map[string]string{"type": "string"},
		"message": map[string]string{"type": "string"},
		"code":    map[string]string{"type": "integer"},
	},
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Climate API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Climate API",
			"description": "Average historical land temperature per country, computed from a dataset loaded once at startup",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:3000", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/climate/{country}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Average temperature for a country",
					"description": "Arithmetic mean of AverageTemperature over every record whose Country matches exactly (case-sensitive). Records with unparsable temperatures are skipped.",
					"parameters": []map[string]interface{}{
						{
							"name":        "country",
							"in":          "path",
							"description": "Country name as it appears in the dataset",
							"required":    true,
							"schema":      map[string]string{"type": "string"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Mean temperature as a decimal number",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema":  map[string]string{"type": "string"},
									"example": "15.0",
								},
							},
						},
						"400": map[string]interface{}{
							"description": "Empty country name",
							"content":     jsonContent(errorSchema),
						},
						"404": map[string]interface{}{
							"description": "No record matches the country",
							"content":     jsonContent(errorSchema),
						},
						"500": map[string]interface{}{
							"description": "Every matching record has an unparsable temperature",
							"content":     jsonContent(errorSchema),
						},
					},
				},
			},
			"/api/countries": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List countries",
					"description": "Distinct countries in the dataset with their record counts, sorted by name",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Successful response",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"data": map[string]interface{}{
										"type": "array",
										"items": map[string]interface{}{
											"type": "object",
											"properties": map[string]interface{}{
												"country": map[string]string{"type": "string"},
												"records": map[string]string{"type": "integer"},
											},
										},
									},
									"total": map[string]string{"type": "integer"},
								},
							}),
						},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"status":    map[string]string{"type": "string"},
									"timestamp": map[string]string{"type": "string", "format": "date-time"},
									"records":   map[string]string{"type": "integer"},
								},
							}),
						},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
