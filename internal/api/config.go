package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"cdi-map/internal/overlay"
)

// 文档注释：前端启动配置脚本（/config.js）
// 背景：向前端暴露 API 基础路径、标题与底图，避免硬编码；值经 JSON 编码后写入，保证脚本合法。
func ConfigScript(apiBase, title string, base overlay.BaseLayer) http.HandlerFunc {
	vars := []struct {
		name string
		val  any
	}{
		{"__API_BASE__", apiBase},
		{"__APP_TITLE__", title},
		{"__BASE_LAYER__", base},
	}
	var sb strings.Builder
	for _, v := range vars {
		b, _ := json.Marshal(v.val)
		sb.WriteString("window." + v.name + "=")
		sb.Write(b)
		sb.WriteString(";\n")
	}
	script := []byte(sb.String())
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write(script)
	}
}
