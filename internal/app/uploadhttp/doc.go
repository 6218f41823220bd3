// Package uploadhttp реализует HTTP-интерфейс загрузки файлов частями. Основные эндпоинты:
//   - POST /api/upload-chunk?uploadId=&chunkIndex= — multipart с полями fileName, totalChunks и частью file.
//   - GET /api/upload-status/{uploadId} — состояние загрузки по данным на диске.
//   - POST /api/upload-combine/{uploadId} — принудительная сборка по сохранённым метаданным.
//   - POST /admin/gc — ручной запуск очистки брошенных загрузок.
//   - GET /health — суммарный размер каталога загрузок для health-check'ов.
//   - GET /metrics — метрики Prometheus.
package uploadhttp
