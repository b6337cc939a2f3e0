// query.go — сервис листинга и поиска по живому индексу.
package service

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lanshare/internal/domain/model"
	"github.com/bigkaa/lanshare/internal/storage/metastore"
)

// Prometheus-метрики поиска.
var (
	searchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanshare_search_total",
		Help: "Общее количество поисковых запросов.",
	})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lanshare_search_duration_seconds",
		Help:    "Длительность поисковых запросов.",
		Buckets: prometheus.DefBuckets,
	})
)

// Релевантность совпадений поиска.
const (
	relevancePrefix   = 1.0
	relevanceContains = 0.5
)

// ListParams — параметры листинга живого индекса.
type ListParams struct {
	// Class — фильтр по классу файла ("" — все)
	Class string
	// Folder — фильтр по каталогу ("" — все)
	Folder string
	// SortBy — поле сортировки: name, date, size (по умолчанию name)
	SortBy string
	// Order — направление: asc, desc (по умолчанию asc)
	Order string
}

// SearchHit — результат поиска с релевантностью.
type SearchHit struct {
	Entry     *model.FileEntry
	Relevance float64
}

// QueryService — сервис листинга и поиска файлов.
type QueryService struct {
	meta   *metastore.Store
	logger *slog.Logger
}

// NewQueryService создаёт сервис листинга и поиска.
func NewQueryService(meta *metastore.Store, logger *slog.Logger) *QueryService {
	return &QueryService{
		meta:   meta,
		logger: logger.With(slog.String("component", "query_service")),
	}
}

// List возвращает записи живого индекса с фильтрацией и сортировкой.
// Порядок детерминирован: при равенстве ключа сортировки записи
// упорядочиваются по id.
func (q *QueryService) List(params ListParams) []*model.FileEntry {
	entries := q.meta.Files()

	if params.Class != "" || params.Folder != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if params.Class != "" && string(model.Classify(e.MimeType, e.OriginalName)) != params.Class {
				continue
			}
			if params.Folder != "" && e.Folder != params.Folder {
				continue
			}
			filtered = append(filtered, e)
		}
		entries = filtered
	}

	sortEntries(entries, params.SortBy, params.Order)
	return entries
}

// Search выполняет поиск по отображаемым именам файлов без учёта регистра.
// Совпадение с начала имени даёт релевантность 1.0, совпадение внутри — 0.5.
// class сужает поиск до одного класса файлов ("" — без ограничения).
// Результаты упорядочены по убыванию релевантности, затем по имени, затем по id.
func (q *QueryService) Search(query, class string) []*SearchHit {
	start := time.Now()
	searchTotal.Inc()

	needle := strings.ToLower(strings.TrimSpace(query))
	var hits []*SearchHit

	if needle != "" {
		for _, e := range q.meta.Files() {
			if class != "" && string(model.Classify(e.MimeType, e.OriginalName)) != class {
				continue
			}
			name := strings.ToLower(e.OriginalName)
			switch {
			case strings.HasPrefix(name, needle):
				hits = append(hits, &SearchHit{Entry: e, Relevance: relevancePrefix})
			case strings.Contains(name, needle):
				hits = append(hits, &SearchHit{Entry: e, Relevance: relevanceContains})
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Relevance != hits[j].Relevance {
			return hits[i].Relevance > hits[j].Relevance
		}
		ni, nj := hits[i].Entry.OriginalName, hits[j].Entry.OriginalName
		if ni != nj {
			return ni < nj
		}
		return hits[i].Entry.ID < hits[j].Entry.ID
	})

	duration := time.Since(start)
	searchDuration.Observe(duration.Seconds())

	q.logger.Debug("Поиск выполнен",
		slog.String("query", query),
		slog.Int("hits", len(hits)),
		slog.Duration("duration", duration),
	)

	return hits
}

// sortEntries сортирует записи по заданному полю и направлению.
func sortEntries(entries []*model.FileEntry, sortBy, order string) {
	desc := order == "desc"

	less := func(i, j int) bool {
		var cmp int
		switch sortBy {
		case "date":
			switch {
			case entries[i].CreatedAt.Before(entries[j].CreatedAt):
				cmp = -1
			case entries[i].CreatedAt.After(entries[j].CreatedAt):
				cmp = 1
			}
		case "size":
			switch {
			case entries[i].Size < entries[j].Size:
				cmp = -1
			case entries[i].Size > entries[j].Size:
				cmp = 1
			}
		default: // name
			cmp = strings.Compare(
				strings.ToLower(entries[i].OriginalName),
				strings.ToLower(entries[j].OriginalName),
			)
		}

		if cmp == 0 {
			// Тай-брейк по id не зависит от направления сортировки
			return entries[i].ID < entries[j].ID
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	}

	sort.Slice(entries, less)
}
