package report

import "github.com/reportpilot/reportpilot/internal/domain"

// labels holds the localized strings used in report bodies.
type labels struct {
	GeneratedOn    string
	DataOverview   string
	TotalRows      string
	TotalColumns   string
	NumericColumns string
	MissingValues  string
	AIAnalysis     string
	Visualizations string
	ChartsAttached string
	DataSample     string
	FooterNote     string
}

var locales = map[string]labels{
	"en": {
		GeneratedOn:    "Generated on",
		DataOverview:   "Data Overview",
		TotalRows:      "Total Rows",
		TotalColumns:   "Total Columns",
		NumericColumns: "Numeric Columns",
		MissingValues:  "Missing Values",
		AIAnalysis:     "AI Analysis",
		Visualizations: "Visualizations",
		ChartsAttached: "Charts are included in the attached PDF report.",
		DataSample:     "Data Sample",
		FooterNote:     "This report was generated automatically.",
	},
	"es": {
		GeneratedOn:    "Generado el",
		DataOverview:   "Resumen de Datos",
		TotalRows:      "Filas Totales",
		TotalColumns:   "Columnas Totales",
		NumericColumns: "Columnas Numéricas",
		MissingValues:  "Valores Faltantes",
		AIAnalysis:     "Análisis de IA",
		Visualizations: "Visualizaciones",
		ChartsAttached: "Los gráficos están incluidos en el PDF adjunto.",
		DataSample:     "Muestra de Datos",
		FooterNote:     "Este informe fue generado automáticamente.",
	},
	"fr": {
		GeneratedOn:    "Généré le",
		DataOverview:   "Aperçu des Données",
		TotalRows:      "Lignes Totales",
		TotalColumns:   "Colonnes Totales",
		NumericColumns: "Colonnes Numériques",
		MissingValues:  "Valeurs Manquantes",
		AIAnalysis:     "Analyse IA",
		Visualizations: "Visualisations",
		ChartsAttached: "Les graphiques figurent dans le PDF joint.",
		DataSample:     "Échantillon de Données",
		FooterNote:     "Ce rapport a été généré automatiquement.",
	},
	"de": {
		GeneratedOn:    "Erstellt am",
		DataOverview:   "Datenübersicht",
		TotalRows:      "Zeilen gesamt",
		TotalColumns:   "Spalten gesamt",
		NumericColumns: "Numerische Spalten",
		MissingValues:  "Fehlende Werte",
		AIAnalysis:     "KI-Analyse",
		Visualizations: "Visualisierungen",
		ChartsAttached: "Die Diagramme sind im beigefügten PDF enthalten.",
		DataSample:     "Datenstichprobe",
		FooterNote:     "Dieser Bericht wurde automatisch erstellt.",
	},
	"pt": {
		GeneratedOn:    "Gerado em",
		DataOverview:   "Visão Geral dos Dados",
		TotalRows:      "Total de Linhas",
		TotalColumns:   "Total de Colunas",
		NumericColumns: "Colunas Numéricas",
		MissingValues:  "Valores Ausentes",
		AIAnalysis:     "Análise de IA",
		Visualizations: "Visualizações",
		ChartsAttached: "Os gráficos estão incluídos no PDF anexo.",
		DataSample:     "Amostra de Dados",
		FooterNote:     "Este relatório foi gerado automaticamente.",
	},
	"hi": {
		GeneratedOn:    "निर्मित",
		DataOverview:   "डेटा अवलोकन",
		TotalRows:      "कुल पंक्तियाँ",
		TotalColumns:   "कुल स्तंभ",
		NumericColumns: "संख्यात्मक स्तंभ",
		MissingValues:  "अनुपलब्ध मान",
		AIAnalysis:     "एआई विश्लेषण",
		Visualizations: "चार्ट",
		ChartsAttached: "चार्ट संलग्न पीडीएफ रिपोर्ट में शामिल हैं।",
		DataSample:     "डेटा नमूना",
		FooterNote:     "यह रिपोर्ट स्वचालित रूप से बनाई गई थी।",
	},
	"zh": {
		GeneratedOn:    "生成日期",
		DataOverview:   "数据概览",
		TotalRows:      "总行数",
		TotalColumns:   "总列数",
		NumericColumns: "数值列",
		MissingValues:  "缺失值",
		AIAnalysis:     "AI 分析",
		Visualizations: "图表",
		ChartsAttached: "图表包含在随附的 PDF 报告中。",
		DataSample:     "数据样本",
		FooterNote:     "此报告由系统自动生成。",
	},
	"ja": {
		GeneratedOn:    "作成日",
		DataOverview:   "データ概要",
		TotalRows:      "総行数",
		TotalColumns:   "総列数",
		NumericColumns: "数値列",
		MissingValues:  "欠損値",
		AIAnalysis:     "AI分析",
		Visualizations: "グラフ",
		ChartsAttached: "グラフは添付のPDFレポートに含まれています。",
		DataSample:     "データサンプル",
		FooterNote:     "このレポートは自動的に生成されました。",
	},
}

// latinLanguages are the languages the PDF core fonts can render. The
// PDF falls back to English labels for the rest; HTML carries the full
// localized content either way.
var latinLanguages = map[string]struct{}{
	"en": {}, "es": {}, "fr": {}, "de": {}, "pt": {},
}

func labelsFor(lang string) labels {
	return locales[domain.NormalizeLanguage(lang)]
}

func latinScript(lang string) bool {
	_, ok := latinLanguages[domain.NormalizeLanguage(lang)]
	return ok
}
