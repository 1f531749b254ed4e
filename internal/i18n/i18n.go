// Package i18n 提供国际化支持
// 负责管理错误消息的语言包和翻译功能
package i18n

import (
	"strings"
	"sync"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/weiwangfds/scisign/internal/logger"
)

// 支持的语言
const (
	LangZhCN = "zh-CN"
	LangEnUS = "en-US"
)

var (
	instance *I18n
	once     sync.Once

	// 语言包存储
	translations = map[string]map[string]string{
		LangZhCN: {
			"success":               "成功",
			"internal_server_error": "服务器内部错误",
			"invalid_params":        "参数错误",
			"unauthorized":          "未授权",
			"forbidden":             "禁止访问",
			"not_found":             "资源未找到",
			"service_unavailable":   "服务不可用",
			"login_required":        "需要登录",
			"payload_too_large":     "请求体过大",

			"signature_not_found":     "签名不存在",
			"invalid_path":            "非法的签名路径",
			"storage_unavailable":     "签名存储目录不可用",
			"signature_decode_failed": "签名数据解码失败",
			"signature_write_failed":  "签名文件写入失败",
			"invalid_token":           "访问哈希无效",
			"image_encode_failed":     "图片编码失败",
			"entropy_unavailable":     "随机源不可用",

			"form_not_found":      "表单不存在",
			"field_not_found":     "字段不存在",
			"entry_not_found":     "条目不存在",
			"field_not_signature": "字段不是签名字段",

			"mirror_config_invalid":         "镜像配置无效",
			"mirror_connection_failed":      "镜像连接失败",
			"mirror_upload_failed":          "镜像上传失败",
			"mirror_delete_failed":          "镜像删除失败",
			"mirror_provider_not_supported": "镜像提供商不支持",
			"mirror_queue_full":             "镜像队列已满",

			"database_connection": "数据库连接错误",
			"database_query":      "数据库查询错误",
			"database_insert":     "数据库插入错误",
			"database_update":     "数据库更新错误",
			"database_delete":     "数据库删除错误",

			"unknown_error": "未知错误",
		},
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal Server Error",
			"invalid_params":        "Invalid Parameters",
			"unauthorized":          "Unauthorized",
			"forbidden":             "Forbidden",
			"not_found":             "Resource Not Found",
			"service_unavailable":   "Service Unavailable",
			"login_required":        "Login Required",
			"payload_too_large":     "Payload Too Large",

			"signature_not_found":     "Signature Not Found",
			"invalid_path":            "Invalid Signature Path",
			"storage_unavailable":     "Signature Storage Unavailable",
			"signature_decode_failed": "Signature Decode Failed",
			"signature_write_failed":  "Signature Write Failed",
			"invalid_token":           "Invalid Access Hash",
			"image_encode_failed":     "Image Encode Failed",
			"entropy_unavailable":     "Entropy Source Unavailable",

			"form_not_found":      "Form Not Found",
			"field_not_found":     "Field Not Found",
			"entry_not_found":     "Entry Not Found",
			"field_not_signature": "Field Is Not A Signature Field",

			"mirror_config_invalid":         "Mirror Config Invalid",
			"mirror_connection_failed":      "Mirror Connection Failed",
			"mirror_upload_failed":          "Mirror Upload Failed",
			"mirror_delete_failed":          "Mirror Delete Failed",
			"mirror_provider_not_supported": "Mirror Provider Not Supported",
			"mirror_queue_full":             "Mirror Queue Full",

			"database_connection": "Database Connection Error",
			"database_query":      "Database Query Error",
			"database_insert":     "Database Insert Error",
			"database_update":     "Database Update Error",
			"database_delete":     "Database Delete Error",

			"unknown_error": "Unknown Error",
		},
	}
)

// I18n 国际化管理器
type I18n struct {
	mu          sync.RWMutex
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance 获取I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangEnUS,
		}
		instance.initTranslators()
	})
	return instance
}

// initTranslators 初始化翻译器
func (i *I18n) initTranslators() {
	enUS := en_US.New()
	uni := ut.New(enUS, enUS, zh.New())

	// 我们的语言代码 -> locale库标识符
	langMappings := map[string]string{
		LangZhCN: "zh",
		LangEnUS: "en_US",
	}

	for ourLang, localeLang := range langMappings {
		trans, found := uni.GetTranslator(localeLang)
		if !found {
			logger.Errorf("translator not found for %s (locale %s)", ourLang, localeLang)
			continue
		}
		i.translators[ourLang] = trans
	}
}

// Translate 根据键和语言获取翻译
// 当前语言缺失时回退到默认语言，仍缺失时返回键本身
func (i *I18n) Translate(key, lang string) string {
	i.mu.RLock()
	defaultLang := i.defaultLang
	i.mu.RUnlock()

	if _, ok := i.translators[lang]; !ok {
		lang = defaultLang
	}

	if translation, found := translations[lang][key]; found {
		return translation
	}
	if lang != defaultLang {
		if translation, found := translations[defaultLang][key]; found {
			return translation
		}
	}

	logger.Warnf("translation missing: %s (%s)", key, lang)
	return key
}

// SetDefaultLanguage 设置默认语言，不支持的语言会被忽略
func (i *I18n) SetDefaultLanguage(lang string) {
	if !i.IsSupportedLanguage(lang) {
		logger.Warnf("unsupported language %s, keeping %s", lang, i.GetDefaultLanguage())
		return
	}
	i.mu.Lock()
	i.defaultLang = lang
	i.mu.Unlock()
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.defaultLang
}

// IsSupportedLanguage 检查语言是否支持
func (i *I18n) IsSupportedLanguage(lang string) bool {
	_, exists := i.translators[lang]
	return exists
}

// Negotiate 从Accept-Language头中选出第一个支持的语言，没有则返回默认语言
func (i *I18n) Negotiate(acceptLanguage string) string {
	for _, tag := range parseAcceptLanguage(acceptLanguage) {
		switch {
		case i.IsSupportedLanguage(tag):
			return tag
		case len(tag) >= 2 && tag[:2] == "zh":
			return LangZhCN
		case len(tag) >= 2 && tag[:2] == "en":
			return LangEnUS
		}
	}
	return i.GetDefaultLanguage()
}

// parseAcceptLanguage 按出现顺序返回语言标签，忽略q权重
func parseAcceptLanguage(header string) []string {
	var tags []string
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(part)
		if idx := strings.IndexByte(tag, ';'); idx >= 0 {
			tag = strings.TrimSpace(tag[:idx])
		}
		if tag != "" && tag != "*" {
			tags = append(tags, tag)
		}
	}
	return tags
}
