// Пакет safepath — нормализация и проверка путей, полученных от клиента.
// Все пользовательские пути (папки загрузки, создаваемые каталоги)
// проходят через CleanRelative до любого обращения к файловой системе.
// Пакет не имеет побочных эффектов.
package safepath

import (
	"errors"
	"path"
	"strings"
)

// Ошибки валидации путей и имён.
var (
	// ErrInvalidPath — путь выходит за пределы storage root или содержит
	// недопустимые элементы.
	ErrInvalidPath = errors.New("недопустимый путь")
	// ErrInvalidName — имя файла пустое или содержит разделители пути.
	ErrInvalidName = errors.New("недопустимое имя файла")
)

// CleanRelative нормализует относительный путь клиента и проверяет,
// что после нормализации он остаётся внутри storage root.
// Принимает многосегментные пути из folder upload ("a/b/c").
// Возвращает slash-нормализованный относительный путь; "" означает корень.
//
// Отклоняет: абсолютные пути, сегменты "..", null-байты,
// Windows-пути с буквой диска.
func CleanRelative(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", ErrInvalidPath
	}

	// Windows-разделители приводим к slash до нормализации
	p = strings.ReplaceAll(p, "\\", "/")

	if p == "" || p == "." {
		return "", nil
	}
	if strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	// Буква диска: "C:", "C:/..."
	if len(p) >= 2 && p[1] == ':' {
		return "", ErrInvalidPath
	}

	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}

	return cleaned, nil
}

// CleanName проверяет пользовательское имя файла (загрузка, rename).
// Имя должно быть непустым, без разделителей пути и управляющих
// символов: имя попадает в заголовок Content-Disposition, и CR/LF
// в нём означали бы инъекцию заголовков.
// Возвращает имя с обрезанными пробелами по краям.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") {
		return "", ErrInvalidName
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return "", ErrInvalidName
		}
	}
	return name, nil
}

// StorageName приводит имя файла к безопасному для диска виду.
// Оставляет буквы (включая кириллицу), цифры, точку, дефис и
// подчёркивание; остальное отбрасывает. Ограничивает длину,
// чтобы итоговое имя с префиксом-идентификатором не упёрлось
// в лимиты файловой системы.
func StorageName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || strings.Trim(s, ".") == "" {
		return "file"
	}
	if runes := []rune(s); len(runes) > 80 {
		// Хвост сохраняет расширение файла
		s = string(runes[len(runes)-80:])
	}
	return s
}
