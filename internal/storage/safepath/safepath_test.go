package safepath

import (
	"errors"
	"strings"
	"testing"
)

func TestCleanRelative(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "пустой путь", input: "", want: ""},
		{name: "точка", input: ".", want: ""},
		{name: "простой относительный путь", input: "a/b/c.txt", want: "a/b/c.txt"},
		{name: "путь с лишними слэшами", input: "a//b/./c.txt", want: "a/b/c.txt"},
		{name: "обратные слэши нормализуются", input: "a\\b\\c.txt", want: "a/b/c.txt"},
		{name: "выход из корня", input: "../../etc/passwd", wantErr: true},
		{name: "скрытый выход из корня", input: "a/../../etc", wantErr: true},
		{name: "абсолютный путь", input: "/etc/passwd", wantErr: true},
		{name: "буква диска", input: "C:\\Windows\\system32", wantErr: true},
		{name: "нулевой байт", input: "a/b\x00c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanRelative(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CleanRelative(%q): ожидалась ошибка, получено %q", tt.input, got)
				}
				if !errors.Is(err, ErrInvalidPath) {
					t.Errorf("ожидалась ErrInvalidPath, получена %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanRelative(%q): неожиданная ошибка: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("CleanRelative(%q) = %q, ожидалось %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanName(t *testing.T) {
	if _, err := CleanName(""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("пустое имя: ожидалась ErrInvalidName, получена %v", err)
	}
	if _, err := CleanName("a/b.txt"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("имя с разделителем: ожидалась ErrInvalidName, получена %v", err)
	}
	if _, err := CleanName("a\\b.txt"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("имя с обратным слэшем: ожидалась ErrInvalidName, получена %v", err)
	}

	// Управляющие символы в имени — путь к инъекции в Content-Disposition
	for _, name := range []string{"a\x00b.txt", "a\rb.txt", "a\nb.txt", "evil\r\nSet-Cookie: x.txt", "a\x7fb.txt"} {
		if _, err := CleanName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("CleanName(%q): ожидалась ErrInvalidName, получена %v", name, err)
		}
	}

	got, err := CleanName("отчёт 2024.pdf")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if got != "отчёт 2024.pdf" {
		t.Errorf("имя изменено: %q", got)
	}
}

func TestStorageName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "латиница и цифры", input: "report-2024_v1.pdf", want: "report-2024_v1.pdf"},
		{name: "пробелы отбрасываются", input: "my report.pdf", want: "myreport.pdf"},
		{name: "кириллица сохраняется", input: "отчёт.pdf", want: "отчёт.pdf"},
		{name: "спецсимволы вычищаются", input: "a<b>:c?.txt", want: "abc.txt"},
		{name: "пустой результат заменяется", input: "???", want: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StorageName(tt.input); got != tt.want {
				t.Errorf("StorageName(%q) = %q, ожидалось %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStorageNameTruncation(t *testing.T) {
	long := strings.Repeat("ф", 200) + ".txt"
	got := StorageName(long)

	if runes := []rune(got); len(runes) > 80 {
		t.Errorf("длина имени %d рун, ожидалось не более 80", len(runes))
	}
	if !strings.HasSuffix(got, ".txt") {
		t.Errorf("расширение утеряно при усечении: %q", got)
	}
}
