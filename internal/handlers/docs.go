package handlers

import (
	"net/http"

	"github.com/goccy/go-json"

	"climate-records/internal/models"
	"climate-records/internal/services"
)

type object = map[string]interface{}

func pathParam(name, description, typ string) object {
	return object{
		"name":        name,
		"in":          "path",
		"description": description,
		"required":    true,
		"schema":      object{"type": typ},
	}
}

func queryParam(name, description string, required bool, schema object) object {
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      schema,
	}
}

var (
	intSchema    = object{"type": "integer"}
	yearSchema   = object{"type": "integer", "minimum": models.FirstYear, "maximum": models.LastYear}
	dirSchema    = object{"type": "string", "enum": []string{"ASC", "DESC"}}
	numberSchema = object{"type": "number", "nullable": true}
)

func record(props object) object {
	return object{"type": "object", "properties": props}
}

var schemas = object{
	"GeneralRecord": record(object{
		"country":    object{"type": "string"},
		"year":       intSchema,
		"gdp":        object{"type": "integer", "nullable": true},
		"population": object{"type": "integer", "nullable": true},
	}),
	"GeneralRecordInput": object{
		"type":     "object",
		"required": []string{"country", "year"},
		"properties": object{
			"country":    object{"type": "string", "description": "Country name or ISO 3166-1 alpha-3 code"},
			"year":       yearSchema,
			"iso_code":   object{"type": "string"},
			"gdp":        object{"type": "integer", "nullable": true},
			"population": object{"type": "integer", "nullable": true, "minimum": 0},
		},
	},
	"EmissionRecord": record(object{
		"country":       object{"type": "string"},
		"year":          intSchema,
		"co2":           numberSchema,
		"methane":       numberSchema,
		"nitrous_oxide": numberSchema,
		"total_ghg":     numberSchema,
	}),
	"EnergyRecord": record(object{
		"country":           object{"type": "string"},
		"year":              intSchema,
		"energy_per_capita": numberSchema,
		"energy_per_gdp":    numberSchema,
	}),
	"TemperatureRecord": record(object{
		"country":                              object{"type": "string"},
		"year":                                 intSchema,
		"share_of_temperature_change_from_ghg": numberSchema,
		"temperature_change_from_ch4":          numberSchema,
		"temperature_change_from_co2":          numberSchema,
		"temperature_change_from_ghg":          numberSchema,
		"temperature_change_from_n2o":          numberSchema,
	}),
	"CountryRanking": record(object{
		"name":                                 object{"type": "string"},
		"share_of_temperature_change_from_ghg": numberSchema,
	}),
	"Message": record(object{"message": object{"type": "string"}}),
	"Error":   record(object{"error-message": object{"type": "string"}}),
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

// content offers JSON and CSV for the same schema.
func content(schema object) object {
	return object{
		"application/json": object{"schema": schema},
		"text/csv":         object{"schema": object{"type": "string"}},
	}
}

func ok(description string, schema object) object {
	return object{"description": description, "content": content(schema)}
}

func list(name string) object {
	return object{
		"200": ok("Matching records", object{"type": "array", "items": ref(name)}),
		"204": object{"description": emptyListMessage},
		"400": errorResponse("Invalid parameter"),
	}
}

func errorResponse(description string) object {
	return object{
		"description": description,
		"content":     object{"application/json": object{"schema": ref("Error")}},
	}
}

func withCountryGuard(responses object) object {
	responses["404"] = errorResponse("Country not found")
	return responses
}

var generalKey = []object{
	pathParam("country", "Country name or ISO 3166-1 alpha-3 code", "string"),
	pathParam("year", "Record year", "integer"),
}

func openAPIDocument() object {
	return object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Climate Records API",
			"description": "Country and continent climate, emissions and energy records from 1900 to 1999",
			"version":     "1.0.0",
		},
		"servers": []object{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"components": object{"schemas": schemas},
		"paths": object{
			"/records": object{
				"put": object{
					"summary": "Bulk ingest records from a CSV dataset",
					"parameters": []object{
						queryParam("emissions_csv_url", "URL of the emissions CSV", true, object{"type": "string", "format": "uri"}),
					},
					"responses": object{
						"201": ok("Records created", ref("Message")),
						"400": errorResponse("URL not provided or a row is invalid"),
						"500": errorResponse("The dataset could not be fetched"),
					},
				},
			},
			"/records/general": object{
				"post": object{
					"summary": "Create a general record",
					"requestBody": object{
						"required": true,
						"content":  object{"application/json": object{"schema": ref("GeneralRecordInput")}},
					},
					"responses": withCountryGuard(object{
						"201": ok("Record created; Location points to it", ref("GeneralRecord")),
						"400": errorResponse("Invalid body"),
						"409": errorResponse("Record with the same name already exists"),
					}),
				},
			},
			"/records/{country}/general": object{
				"get": object{
					"summary": "List the general records of a country",
					"parameters": []object{
						pathParam("country", "Country name or ISO 3166-1 alpha-3 code", "string"),
						queryParam("year", "First year to include", false, yearSchema),
						queryParam("order_by", "Sort column", false, object{"type": "string", "enum": services.GeneralOrderColumns}),
						queryParam("order_dir", "Sort direction", false, dirSchema),
						queryParam("limit", "Page size", false, object{"type": "integer", "minimum": 1, "maximum": 100, "default": 100}),
						queryParam("offset", "Rows to skip", false, object{"type": "integer", "minimum": 0}),
					},
					"responses": withCountryGuard(list("GeneralRecord")),
				},
			},
			"/records/{country}/{year}/general": object{
				"get": object{
					"summary":    "Read a general record",
					"parameters": generalKey,
					"responses": withCountryGuard(object{
						"200": ok("The record", ref("GeneralRecord")),
						"400": errorResponse("Invalid parameter"),
					}),
				},
				"put": object{
					"summary":    "Replace gdp and population of a general record",
					"parameters": generalKey,
					"requestBody": object{
						"content": object{"application/json": object{"schema": record(object{
							"gdp":        object{"type": "integer", "nullable": true},
							"population": object{"type": "integer", "nullable": true},
						})}},
					},
					"responses": withCountryGuard(object{
						"200": ok("The updated record", ref("GeneralRecord")),
						"400": errorResponse("Invalid body"),
					}),
				},
				"delete": object{
					"summary":    "Delete a general record",
					"parameters": generalKey,
					"responses": withCountryGuard(object{
						"204": object{"description": "Deleted"},
					}),
				},
			},
			"/records/{country}/emission": object{
				"get": object{
					"summary": "List the emission records of a country",
					"parameters": []object{
						pathParam("country", "Country name or ISO 3166-1 alpha-3 code", "string"),
						queryParam("year", "First year to include", false, yearSchema),
					},
					"responses": withCountryGuard(list("EmissionRecord")),
				},
			},
			"/records/{continent}/temp-change": object{
				"get": object{
					"summary": "List the temperature change records of a continent",
					"parameters": []object{
						{
							"name":     "continent",
							"in":       "path",
							"required": true,
							"schema":   object{"type": "string", "enum": models.Continents},
						},
						queryParam("year", "First year to include", false, yearSchema),
					},
					"responses": list("TemperatureRecord"),
				},
			},
			"/records/{year}/energy": object{
				"get": object{
					"summary": "One batch of the energy records of a year ordered by population",
					"parameters": []object{
						pathParam("year", "Record year", "integer"),
						queryParam("order_dir", "Population sort direction", true, dirSchema),
						queryParam("batch_size", "Rows per batch", true, object{"type": "integer", "enum": []int{10, 20, 50, 100}}),
						queryParam("batch_index", "1-based batch number", true, object{"type": "integer", "minimum": 1}),
					},
					"responses": list("EnergyRecord"),
				},
			},
			"/records/countries": object{
				"get": object{
					"summary": "Rank countries by their share of temperature change from greenhouse gases",
					"parameters": []object{
						queryParam("period_type", "Period kind", true, object{"type": "string", "enum": []string{"specific-year", "last-m-years"}}),
						queryParam("period_value", "The year, or the number of trailing years", true, intSchema),
						queryParam("num_countries", "Entries to return", true, object{"type": "integer", "minimum": 1}),
						queryParam("order_dir", "Sort direction", false, dirSchema),
					},
					"responses": list("CountryRanking"),
				},
			},
			"/health": object{
				"get": object{
					"summary": "Health check",
					"responses": object{
						"200": object{"description": "API and database are healthy"},
						"503": object{"description": "Database unreachable"},
					},
				},
			},
			"/metrics": object{
				"get": object{
					"summary": "Prometheus metrics",
					"responses": object{
						"200": object{
							"description": "Prometheus metrics in text format",
							"content":     object{"text/plain": object{"schema": object{"type": "string"}}},
						},
					},
				},
			},
		},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 document describing the records API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	data, err := json.Marshal(openAPIDocument())
	if err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeBody(w, http.StatusOK, contentTypeJSON, data)
}
