package ai

import (
	"encoding/json"

	"github.com/sashabaranov/go-openai"
)

// toolDefinitions advertises the actions the model may request. The dispatcher
// owns validation; schemas here only guide the model.
var toolDefinitions = []openai.Tool{
	tool("send_media", "Envía una foto del catálogo al cliente.", `{
		"type": "object",
		"properties": {
			"category": {"type": "string", "description": "Categoría: exterior, interior, amenidades o planos"},
			"subfilters": {"type": "array", "items": {"type": "string"}, "description": "Filtros opcionales, p.ej. cocina, piscina"}
		},
		"required": ["category"]
	}`),
	tool("send_location", "Comparte la ubicación de una propiedad.", `{
		"type": "object",
		"properties": {
			"property": {"type": "string", "description": "Clave de propiedad, p.ej. yucatan"}
		},
		"required": ["property"]
	}`),
	tool("send_brochure", "Envía el brochure PDF de una propiedad.", `{
		"type": "object",
		"properties": {
			"property": {"type": "string", "description": "Clave de propiedad; vacío usa el brochure general"}
		}
	}`),
	tool("forward_media", "Reenvía al equipo de ventas un archivo que mandó el cliente.", `{
		"type": "object",
		"properties": {
			"media_url": {"type": "string"},
			"note": {"type": "string", "description": "Contexto breve para el equipo"}
		},
		"required": ["media_url"]
	}`),
	tool("capture_customer_info", "Guarda datos de contacto o preferencias que el cliente compartió.", `{
		"type": "object",
		"properties": {
			"nombre": {"type": "string"},
			"email": {"type": "string"},
			"telefono": {"type": "string"},
			"ciudad_interes": {"type": "string"},
			"proyecto_interes": {"type": "string"},
			"tipo_propiedad": {"type": "string"},
			"presupuesto": {"type": "string", "description": "Presupuesto en lenguaje natural, p.ej. 'entre 3 y 5 millones'"}
		}
	}`),
	tool("qualify_lead", "Registra la intención del cliente: visita, llamada o más información.", `{
		"type": "object",
		"properties": {
			"nombre": {"type": "string"},
			"telefono": {"type": "string"},
			"motivo": {"type": "string", "enum": ["visita", "llamada", "informacion", "otro"]},
			"motivo_interes": {"type": "string"},
			"urgencia_compra": {"type": "string"},
			"metodo_contacto_preferido": {"type": "string"}
		},
		"required": ["motivo"]
	}`),
	tool("provide_contact_info", "Comparte los datos de contacto de la oficina de ventas.", `{
		"type": "object",
		"properties": {
			"property": {"type": "string", "description": "Clave de propiedad para datos específicos"}
		}
	}`),
}

func tool(name, description, schema string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(schema),
		},
	}
}
