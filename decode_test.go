package remoteresource

import (
	"reflect"
	"strings"
	"testing"
)

func TestJSONDecoder(t *testing.T) {
	decode := JSONDecoder[map[string]int]()

	got, err := decode([]byte(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if !reflect.DeepEqual(got, map[string]int{"a": 1, "b": 2}) {
		t.Errorf("decode() = %v", got)
	}

	if _, err := decode([]byte(`not json`)); err == nil {
		t.Error("decode() expected error for invalid JSON, got nil")
	}
}

func TestRawDecoder_CopiesBody(t *testing.T) {
	body := []byte("payload")
	got, err := RawDecoder(body)
	if err != nil {
		t.Fatalf("RawDecoder() error = %v", err)
	}

	body[0] = 'X'
	if string(got) != "payload" {
		t.Errorf("RawDecoder() = %q, want payload unaffected by caller mutation", got)
	}
}

func TestStringDecoder(t *testing.T) {
	got, err := StringDecoder([]byte("hello"))
	if err != nil {
		t.Fatalf("StringDecoder() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("StringDecoder() = %q, want hello", got)
	}
}

func TestJSONOrTextDecoder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "object", body: `{"a":1}`, want: `{"a":1}`},
		{name: "array", body: `[1,2]`, want: `[1,2]`},
		{name: "number", body: `42`, want: `42`},
		{name: "text", body: `all good`, want: `"all good"`},
		{name: "text with quotes", body: `say "hi"`, want: `"say \"hi\""`},
		{name: "empty", body: ``, want: `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSONOrTextDecoder([]byte(tt.body))
			if err != nil {
				t.Fatalf("JSONOrTextDecoder() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("JSONOrTextDecoder() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestJSONFieldDecoder(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		want    string
		wantErr string
	}{
		{
			name: "top level field",
			path: "status",
			body: `{"status":"ok"}`,
			want: `"ok"`,
		},
		{
			name: "nested field",
			path: "data.items",
			body: `{"data":{"items":[1,2]}}`,
			want: `[1,2]`,
		},
		{
			name: "object value",
			path: "data",
			body: `{"data":{"n":1}}`,
			want: `{"n":1}`,
		},
		{
			name: "empty path keeps document",
			path: "",
			body: `{"a":true}`,
			want: `{"a":true}`,
		},
		{
			name:    "empty path rejects text",
			path:    "",
			body:    `plain`,
			wantErr: "not valid JSON",
		},
		{
			name:    "missing field",
			path:    "data.missing",
			body:    `{"data":{"items":[]}}`,
			wantErr: `field "data.missing" not found`,
		},
		{
			name:    "traverse non-object",
			path:    "data.items.first",
			body:    `{"data":{"items":[1]}}`,
			wantErr: `field "data.items" is not an object`,
		},
		{
			name:    "body not json",
			path:    "status",
			body:    `OK`,
			wantErr: "invalid character",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSONFieldDecoder(tt.path)([]byte(tt.body))
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("decode() = %s, want error containing %q", got, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("decode() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("decode() = %s, want %s", got, tt.want)
			}
		})
	}
}
