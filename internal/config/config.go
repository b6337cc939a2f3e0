// Пакет config — загрузка и валидация конфигурации сервиса
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// defaultExtensions — список расширений, принимаемых по умолчанию.
// Переопределяется через LS_ALLOWED_EXTENSIONS.
var defaultExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".svg",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt",
	".txt", ".md", ".csv", ".json", ".xml", ".log",
	".mp3", ".wav", ".ogg", ".mp4", ".avi", ".mkv", ".mov", ".webm",
	".zip", ".rar", ".7z", ".tar", ".gz",
}

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к корневой директории хранения файлов
	DataDir string
	// Путь к директории метаданных (индексы, настройки)
	MetaDir string
	// Путь к директории журнала операций
	JournalDir string
	// Максимальный размер файла в байтах
	MaxFileSize int64
	// Разрешённые расширения файлов (lowercase, с точкой).
	// Пустая map означает «принимать всё».
	AllowedExtensions map[string]bool
	// Окно восстановления из корзины
	TrashWindow time.Duration
	// Интервал запуска sweeper корзины
	SweepInterval time.Duration
	// Удалять ли физические файлы при очистке корзины
	SweepDeleteFiles bool
	// Интервал автоматической сверки индекса с диском
	ReconcileInterval time.Duration
	// Максимальный размер текстового превью в байтах
	PreviewMaxBytes int64
	// Максимальное количество файлов в batch-запросе
	BatchMaxFiles int
	// Размер LRU-кэша текстовых превью (записей)
	PreviewCacheSize int
	// TTL записей кэша превью
	PreviewCacheTTL time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// LS_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("LS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("LS_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("LS_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// LS_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("LS_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// LS_META_DIR — обязательный. Директория метаданных лежит рядом
	// со storage root, не внутри него, иначе индексы попадут в листинги.
	cfg.MetaDir, err = getEnvRequired("LS_META_DIR")
	if err != nil {
		return nil, err
	}

	// LS_JOURNAL_DIR — директория журнала (по умолчанию {LS_META_DIR}/journal)
	cfg.JournalDir = getEnvDefault("LS_JOURNAL_DIR", cfg.MetaDir+"/journal")

	// LS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 2 GB)
	maxFileSize, err := getEnvInt64("LS_MAX_FILE_SIZE", 2147483648)
	if err != nil {
		return nil, fmt.Errorf("LS_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("LS_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// LS_ALLOWED_EXTENSIONS — список расширений через запятую.
	// Специальное значение "*" отключает проверку расширений.
	cfg.AllowedExtensions, err = parseExtensions(getEnvDefault("LS_ALLOWED_EXTENSIONS", ""))
	if err != nil {
		return nil, fmt.Errorf("LS_ALLOWED_EXTENSIONS: %w", err)
	}

	// LS_TRASH_WINDOW — окно восстановления из корзины (по умолчанию 24h)
	cfg.TrashWindow, err = getEnvDuration("LS_TRASH_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LS_TRASH_WINDOW: %w", err)
	}
	if cfg.TrashWindow <= 0 {
		return nil, fmt.Errorf("LS_TRASH_WINDOW: значение должно быть положительным")
	}

	// LS_SWEEP_INTERVAL — интервал очистки корзины (по умолчанию 1h)
	cfg.SweepInterval, err = getEnvDuration("LS_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LS_SWEEP_INTERVAL: %w", err)
	}

	// LS_SWEEP_DELETE_FILES — удалять ли физические файлы при очистке (по умолчанию true)
	cfg.SweepDeleteFiles, err = getEnvBool("LS_SWEEP_DELETE_FILES", true)
	if err != nil {
		return nil, fmt.Errorf("LS_SWEEP_DELETE_FILES: %w", err)
	}

	// LS_RECONCILE_INTERVAL — интервал сверки (по умолчанию 6h)
	cfg.ReconcileInterval, err = getEnvDuration("LS_RECONCILE_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LS_RECONCILE_INTERVAL: %w", err)
	}

	// LS_PREVIEW_MAX_BYTES — лимит текстового превью (по умолчанию 50000)
	cfg.PreviewMaxBytes, err = getEnvInt64("LS_PREVIEW_MAX_BYTES", 50000)
	if err != nil {
		return nil, fmt.Errorf("LS_PREVIEW_MAX_BYTES: %w", err)
	}
	if cfg.PreviewMaxBytes <= 0 {
		return nil, fmt.Errorf("LS_PREVIEW_MAX_BYTES: значение должно быть положительным")
	}

	// LS_BATCH_MAX_FILES — лимит файлов в batch-запросе (по умолчанию 100)
	cfg.BatchMaxFiles, err = getEnvInt("LS_BATCH_MAX_FILES", 100)
	if err != nil {
		return nil, fmt.Errorf("LS_BATCH_MAX_FILES: %w", err)
	}
	if cfg.BatchMaxFiles <= 0 {
		return nil, fmt.Errorf("LS_BATCH_MAX_FILES: значение должно быть положительным")
	}

	// LS_PREVIEW_CACHE_SIZE — размер кэша превью (по умолчанию 128 записей)
	cfg.PreviewCacheSize, err = getEnvInt("LS_PREVIEW_CACHE_SIZE", 128)
	if err != nil {
		return nil, fmt.Errorf("LS_PREVIEW_CACHE_SIZE: %w", err)
	}

	// LS_PREVIEW_CACHE_TTL — TTL кэша превью (по умолчанию 10m)
	cfg.PreviewCacheTTL, err = getEnvDuration("LS_PREVIEW_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LS_PREVIEW_CACHE_TTL: %w", err)
	}

	// LS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LS_LOG_LEVEL: %w", err)
	}

	// LS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("LS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// LS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("LS_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// ExtensionAllowed проверяет, входит ли расширение файла в список
// разрешённых. Пустой список означает «принимать всё».
func (c *Config) ExtensionAllowed(ext string) bool {
	if len(c.AllowedExtensions) == 0 {
		return true
	}
	return c.AllowedExtensions[strings.ToLower(ext)]
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// parseExtensions разбирает список расширений из строки вида ".jpg,.png".
// Пустая строка — список по умолчанию, "*" — отключить проверку.
func parseExtensions(val string) (map[string]bool, error) {
	if val == "*" {
		return map[string]bool{}, nil
	}

	source := defaultExtensions
	if val != "" {
		source = strings.Split(val, ",")
	}

	result := make(map[string]bool, len(source))
	for _, ext := range source {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			return nil, fmt.Errorf("расширение %q должно начинаться с точки", ext)
		}
		result[ext] = true
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("список расширений пуст")
	}
	return result, nil
}

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
