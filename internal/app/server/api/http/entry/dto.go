package entry

import (
	"lifelog/internal/domain/entry"
)

// createInput принимает сырое тело: один объект записи или JSON-массив записей.
type createInput struct {
	RawBody []byte
}

type createOutput struct {
	Body createResponse
}

type createResponse struct {
	Created int `json:"created" doc:"Количество переданных записей (дубликаты перезаписываются)"`
}

type listInput struct {
	Since    string `query:"since" doc:"Нижняя граница occurred_at, ISO-8601, включительно" example:"2024-01-01T00:00:00Z"`
	Until    string `query:"until" doc:"Верхняя граница occurred_at, ISO-8601, включительно"`
	Category string `query:"category" doc:"Категория"`
	Source   string `query:"source" doc:"Источник: phone, watch, cli"`
	Limit    int    `query:"limit" default:"100" doc:"Размер страницы, не больше 1000"`
	Offset   int    `query:"offset" minimum:"0" default:"0" doc:"Смещение"`
}

type listOutput struct {
	Body []entry.Entry
}

type findInput struct {
	ID string `path:"id" doc:"UUID записи"`
}

type findOutput struct {
	Body entry.Entry
}
