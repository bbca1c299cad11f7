package storecfg

import (
	"fmt"
	"net/url"
	"sort"
)

// MYSQL : key-value tables hosted in a mysql database
type MYSQL struct {
	SessionVariableValues map[string]string `json:"session_vars" yaml:"session_vars"`
	Host                  string            `json:"host" yaml:"host"`
	UserName              string            `json:"user_name" yaml:"user_name"`
	Password              string            `json:"password" yaml:"password"`
	Port                  int               `json:"port" yaml:"port"`
	DB                    string            `json:"db" yaml:"db"`
	KeyAttributes         []string          `json:"key_attributes" yaml:"key_attributes"`
	PageSize              int               `json:"page_size" yaml:"page_size"`
	QueryLogging          bool              `json:"query_log" yaml:"query_log"`
}

func (m *MYSQL) GetDSN() string {
	var ses []string
	for k, v := range m.SessionVariableValues {
		ses = append(ses, "&"+k+"="+url.QueryEscape(v))
	}
	sort.Strings(ses)
	dsn := fmt.Sprintf(`%s:%s@tcp(%s:%d)/%s?parseTime=true&collation=utf8mb4_general_ci&autocommit=true`, m.UserName, m.Password, m.Host, m.Port, m.DB)
	for _, s := range ses {
		dsn += s
	}
	return dsn
}

func (m *MYSQL) validate() []error {
	var errs []error
	if m.Host == "" {
		errs = append(errs, fmt.Errorf("mysql.host is required"))
	}
	if m.DB == "" {
		errs = append(errs, fmt.Errorf("mysql.db is required"))
	}
	if len(m.KeyAttributes) == 0 {
		errs = append(errs, fmt.Errorf("mysql.key_attributes needs at least one attribute"))
	}
	return errs
}
